package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/rbright/tandem/internal/domain"
	"github.com/rbright/tandem/internal/fault"
	"github.com/stretchr/testify/require"
)

func TestSendRoundTrip(t *testing.T) {
	runtimeDir := t.TempDir()
	socketPath := filepath.Join(runtimeDir, "tandem.sock")

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serveDone := make(chan error, 1)
	go func() {
		serveDone <- Serve(ctx, listener, HandlerFunc(func(_ context.Context, req Request) Response {
			if req.Command != "talk" || len(req.Args) != 1 {
				return Response{OK: false, Error: "unexpected request"}
			}
			return Response{
				OK:         true,
				Mode:       "recording(" + req.Args[0] + ")",
				Message:    "ok",
				Processing: &domain.ProcessingState{Speaker: domain.SpeakerPatient, Stage: domain.StageListen},
			}
		}))
	}()

	resp, err := Send(context.Background(), socketPath, Request{Command: "talk", Args: []string{"patient"}}, 200*time.Millisecond)
	require.NoError(t, err)
	require.True(t, resp.OK)
	require.Equal(t, "recording(patient)", resp.Mode)
	require.Equal(t, "ok", resp.Message)
	require.NotNil(t, resp.Processing)
	require.Equal(t, domain.StageListen, resp.Processing.Stage)
	require.Nil(t, resp.Session)

	cancel()
	require.NoError(t, <-serveDone)
}

func TestSendDecodeResponseError(t *testing.T) {
	runtimeDir := t.TempDir()
	socketPath := filepath.Join(runtimeDir, "tandem.sock")

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		conn, acceptErr := listener.Accept()
		if acceptErr != nil {
			return
		}
		defer conn.Close()

		reader := bufio.NewReader(conn)
		_, _ = reader.ReadBytes('\n')
		_, _ = conn.Write([]byte("not-json\n"))
	}()

	_, err = Send(context.Background(), socketPath, Request{Command: "status"}, 200*time.Millisecond)
	require.Error(t, err)
	require.Contains(t, err.Error(), "decode response")
}

func TestSendReadResponseError(t *testing.T) {
	runtimeDir := t.TempDir()
	socketPath := filepath.Join(runtimeDir, "tandem.sock")

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		conn, acceptErr := listener.Accept()
		if acceptErr != nil {
			return
		}
		_ = conn.Close()
	}()

	_, err = Send(context.Background(), socketPath, Request{Command: "status"}, 200*time.Millisecond)
	require.Error(t, err)
	require.Contains(t, err.Error(), "read response")
}

func TestServeDecodeRequestErrorResponse(t *testing.T) {
	runtimeDir := t.TempDir()
	socketPath := filepath.Join(runtimeDir, "tandem.sock")

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	serveDone := make(chan error, 1)
	go func() {
		serveDone <- Serve(ctx, listener, HandlerFunc(func(_ context.Context, _ Request) Response {
			return Response{OK: true}
		}))
	}()

	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("not-json\n"))
	require.NoError(t, err)

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal(line, &resp))
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "decode request")

	cancel()
	require.NoError(t, <-serveDone)
}

func TestProbe(t *testing.T) {
	runtimeDir := t.TempDir()
	socketPath := filepath.Join(runtimeDir, "tandem.sock")

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	serveDone := make(chan error, 1)
	go func() {
		serveDone <- Serve(ctx, listener, HandlerFunc(func(_ context.Context, req Request) Response {
			if req.Command == "status" {
				return Response{OK: true, Mode: "welcome"}
			}
			return Response{OK: false, Error: "bad"}
		}))
	}()

	alive, probeErr := Probe(context.Background(), socketPath, 200*time.Millisecond)
	require.NoError(t, probeErr)
	require.True(t, alive)

	cancel()
	require.NoError(t, <-serveDone)

	alive, probeErr = Probe(context.Background(), socketPath, 100*time.Millisecond)
	require.NoError(t, probeErr)
	require.False(t, alive)
}

func TestSendFailureDecodesFaultKind(t *testing.T) {
	runtimeDir := t.TempDir()
	socketPath := filepath.Join(runtimeDir, "tandem.sock")

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serveDone := make(chan error, 1)
	go func() {
		serveDone <- Serve(ctx, listener, HandlerFunc(func(context.Context, Request) Response {
			return Response{
				OK:      false,
				Mode:    "idle",
				Error:   "no_active_session: end requires a consultation",
				Kind:    string(fault.KindNoActiveSession),
				Message: "No consultation is in progress.",
			}
		}))
	}()

	resp, err := Send(context.Background(), socketPath, Request{Command: "end"}, 200*time.Millisecond)
	require.NoError(t, err)

	remoteErr := resp.Err()
	require.Error(t, remoteErr)
	require.ErrorIs(t, remoteErr, fault.ErrNoActiveSession)
	require.NotErrorIs(t, remoteErr, fault.ErrBusy)
	require.Equal(t, fault.KindNoActiveSession, fault.KindOf(remoteErr))
	require.Equal(t, "no_active_session: end requires a consultation", remoteErr.Error())

	var remote *RemoteError
	require.True(t, errors.As(remoteErr, &remote))
	require.Equal(t, "No consultation is in progress.", remote.UserText())

	cancel()
	require.NoError(t, <-serveDone)
}

func TestResponseErr(t *testing.T) {
	tests := []struct {
		name     string
		resp     Response
		wantNil  bool
		wantKind fault.Kind
		wantText string
		wantUser string
	}{
		{name: "ok", resp: Response{OK: true, Error: "ignored"}, wantNil: true},
		{
			name:     "unclassified",
			resp:     Response{Error: "usage: talk <provider|patient>"},
			wantText: "usage: talk <provider|patient>",
			wantUser: "usage: talk <provider|patient>",
		},
		{
			name:     "classified",
			resp:     Response{Error: "busy: turn in flight", Kind: string(fault.KindBusy), Message: "Please wait for the current turn to finish."},
			wantKind: fault.KindBusy,
			wantText: "busy: turn in flight",
			wantUser: "Please wait for the current turn to finish.",
		},
		{name: "empty", resp: Response{}, wantText: "command failed", wantUser: "command failed"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.resp.Err()
			if tc.wantNil {
				require.NoError(t, err)
				return
			}

			var remote *RemoteError
			require.True(t, errors.As(err, &remote))
			require.Equal(t, tc.wantKind, fault.KindOf(err))
			require.Equal(t, tc.wantText, err.Error())
			require.Equal(t, tc.wantUser, remote.UserText())
		})
	}
}
