package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/rbright/tandem/internal/audio"
	"github.com/rbright/tandem/internal/config"
	"github.com/rbright/tandem/internal/consultation"
	"github.com/rbright/tandem/internal/gateway"
	"github.com/rbright/tandem/internal/indicator"
	"github.com/rbright/tandem/internal/ipc"
	"github.com/rbright/tandem/internal/logging"
	"github.com/rbright/tandem/internal/pipeline"
	"github.com/rbright/tandem/internal/session"
	"github.com/rbright/tandem/internal/version"
)

// commandServe owns the socket and the controller until ctx ends.
func (r Runner) commandServe(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	gw, err := buildGateway(cfg.Gateway)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("gateway setup failed", "error", err.Error())
		return 1
	}

	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	listener, err := ipc.Acquire(ctx, socketPath, 180*time.Millisecond, 8, nil)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	controller := newController(cfg, gw, logger)

	logger.Info("serving",
		"socket", socketPath,
		"mock_gateway", cfg.Gateway.Mock,
		"playback", cfg.Audio.Playback,
	)
	fmt.Fprintf(r.Stdout, "%s listening on %s\n", version.String(), socketPath)

	if err := ipc.Serve(ctx, listener, controller); err != nil {
		fmt.Fprintf(r.Stderr, "error: ipc server failed: %v\n", err)
		logger.Error("ipc server failed", "error", err.Error())
		return 1
	}

	logger.Info("serve stopped", "history", len(controller.History()))
	return 0
}

func buildGateway(cfg config.GatewayConfig) (gateway.Gateway, error) {
	if cfg.Mock {
		return gateway.NewMock(time.Duration(cfg.MockLatencyMS) * time.Millisecond), nil
	}
	client, err := gateway.NewClient(gateway.Config{
		BaseURL:         cfg.BaseURL,
		APIKey:          cfg.APIKey(),
		TranscribeModel: cfg.TranscribeModel,
		SpeechModel:     cfg.SpeechModel,
		UserAgent:       version.UserAgent(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set %s or enable gateway.mock)", err, cfg.APIKeyEnv)
	}
	return client, nil
}

func newController(cfg config.Config, gw gateway.Gateway, logger *slog.Logger) *session.Controller {
	opts := []pipeline.Option{
		pipeline.WithTimeouts(cfg.Timeouts.Stage(), cfg.Timeouts.Overall()),
		pipeline.WithLogger(logger),
	}
	if cfg.Audio.Playback {
		opts = append(opts, pipeline.WithPlayer(audio.NewPlayer(cfg.Audio.PlayerCmd.Argv)))
	}

	return session.NewController(session.Config{
		Logger:      logger,
		Store:       consultation.NewStore(consultation.WithLogger(logger)),
		Runner:      pipeline.NewRunner(gw, opts...),
		Microphone:  newMicrophone(cfg, logger),
		Indicator:   indicator.NewNotifier(cfg.Indicator, logger),
		Settings:    cfg.Settings(),
		FinishDelay: cfg.Timeouts.Finish(),
	})
}

func newMicrophone(cfg config.Config, logger *slog.Logger) session.Microphone {
	recorderCfg := audio.RecorderConfig{
		Input:    cfg.Audio.Input,
		Fallback: cfg.Audio.Fallback,
		Logger:   logger,
	}
	if cfg.Debug.AudioDump {
		if dir, err := logging.DebugDir(); err == nil {
			recorderCfg.DumpDir = dir
		} else {
			logger.Warn("audio dump disabled", "error", err.Error())
		}
	}
	recorder := audio.NewRecorder(recorderCfg)

	return session.MicrophoneFunc(func(ctx context.Context, req session.CaptureRequest) (session.Capture, error) {
		capture, err := recorder.Start(ctx, audio.CaptureOptions{
			MicVolume:   req.MicVolume,
			HighQuality: req.HighQuality,
		})
		if err != nil {
			return nil, err
		}
		logger.Debug("capture started", "speaker", req.Speaker, "device", capture.Device().ID)
		return capture, nil
	})
}
