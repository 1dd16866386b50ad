package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/rbright/tandem/internal/audio"
	"github.com/rbright/tandem/internal/cli"
	"github.com/rbright/tandem/internal/config"
	"github.com/rbright/tandem/internal/doctor"
	"github.com/rbright/tandem/internal/fault"
	"github.com/rbright/tandem/internal/ipc"
	"github.com/rbright/tandem/internal/logging"
	"github.com/rbright/tandem/internal/pipeline"
	"github.com/rbright/tandem/internal/version"
)

const (
	binaryName       = "tandem"
	forwardTimeout   = 2 * time.Second
	settleAllowance  = 2 * time.Second
	notRunningStatus = "not running"
)

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText(binaryName))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText(binaryName))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	logRuntime, err := logging.New()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load config failed", "error", err.Error())
		return 1
	}
	for _, w := range cfgLoaded.Warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}

	logger.Info("command start",
		"command", parsed.Command,
		"args", parsed.Args,
		"config", cfgLoaded.Path,
		"log", logRuntime.Path,
	)

	switch {
	case parsed.Command == cli.CommandServe:
		return r.commandServe(ctx, cfgLoaded.Config, logger)
	case parsed.Command == cli.CommandDoctor:
		report := doctor.Run(ctx, cfgLoaded)
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	case parsed.Command == cli.CommandDevices:
		return r.commandDevices(ctx)
	case parsed.Remote():
		return r.commandRemote(ctx, parsed, cfgLoaded.Config, logger)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

func (r Runner) commandDevices(ctx context.Context) int {
	devices, err := audio.ListDevices(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return 1
	}

	for _, device := range devices {
		defaultMark := " "
		if device.Default {
			defaultMark = "*"
		}
		availability := "yes"
		if !device.Available {
			availability = "no"
		}
		muted := "no"
		if device.Muted {
			muted = "yes"
		}
		fmt.Fprintf(
			r.Stdout,
			"%s id=%s | description=%q | state=%s | available=%s | muted=%s\n",
			defaultMark,
			device.ID,
			device.Description,
			device.State,
			availability,
			muted,
		)
	}

	return 0
}

// commandRemote forwards a consultation command to the serving process and
// renders its reply.
func (r Runner) commandRemote(ctx context.Context, parsed cli.Parsed, cfg config.Config, logger *slog.Logger) int {
	command := string(parsed.Command)

	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		if parsed.Command == cli.CommandStatus {
			fmt.Fprintln(r.Stdout, notRunningStatus)
			return 0
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	req := ipc.Request{Command: command, Args: parsed.Args}
	resp, handled, err := tryForward(ctx, socketPath, req, replyTimeout(parsed.Command, cfg))
	if !handled {
		if parsed.Command == cli.CommandStatus {
			fmt.Fprintln(r.Stdout, notRunningStatus)
			return 0
		}
		fmt.Fprintf(r.Stderr, "error: tandem is not running; start it with `%s serve`\n", binaryName)
		return 1
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if err := resp.Err(); err != nil {
		logger.Warn("command failed", "command", command, "mode", resp.Mode, "kind", fault.KindOf(err), "error", err)
		fmt.Fprintf(r.Stderr, "error: %s\n", failureText(err))
		return 1
	}

	render(r.Stdout, parsed.Command, resp)
	return 0
}

// replyTimeout bounds how long the client waits for the owner. stop waits
// for the whole turn including playback and end for the finishing delay.
func replyTimeout(command cli.Command, cfg config.Config) time.Duration {
	switch command {
	case cli.CommandStop:
		return cfg.Timeouts.Overall() + pipeline.DefaultPlaybackTimeout + settleAllowance
	case cli.CommandEnd:
		return cfg.Timeouts.Finish() + settleAllowance
	default:
		return forwardTimeout
	}
}

func tryForward(ctx context.Context, socketPath string, req ipc.Request, timeout time.Duration) (ipc.Response, bool, error) {
	resp, err := ipc.Send(ctx, socketPath, req, timeout)
	if err == nil {
		return resp, true, nil
	}

	if isSocketMissing(err) {
		return ipc.Response{}, false, nil
	}
	if isConnectionRefused(err) {
		return ipc.Response{}, false, nil
	}

	return ipc.Response{}, true, fmt.Errorf("forward command %q: %w", req.Command, err)
}

func failureText(err error) string {
	var remote *ipc.RemoteError
	if errors.As(err, &remote) {
		return remote.UserText()
	}
	return err.Error()
}

func isSocketMissing(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, os.ErrNotExist) ||
		strings.Contains(err.Error(), "no such file or directory")
}

func isConnectionRefused(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, syscall.ECONNREFUSED)
}
