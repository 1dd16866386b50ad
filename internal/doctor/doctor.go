// Package doctor runs readiness diagnostics for config, audio, and the speech gateway.
package doctor

import (
	"context"
	"fmt"
	"net/http"
	"os/exec"
	"strings"
	"time"

	"github.com/rbright/tandem/internal/audio"
	"github.com/rbright/tandem/internal/config"
)

const probeTimeout = 2 * time.Second

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(ctx context.Context, loaded config.Loaded) Report {
	cfg := loaded.Config
	checks := []Check{checkConfig(loaded)}

	if cfg.Gateway.Mock {
		checks = append(checks, Check{Name: "gateway", Pass: true, Message: "mock gateway enabled; no network calls are made"})
	} else {
		checks = append(checks, checkAPIKey(cfg.Gateway))
		checks = append(checks, checkGatewayReachable(ctx, cfg.Gateway.BaseURL))
		if strings.TrimSpace(cfg.Gateway.HealthGRPC) != "" {
			checks = append(checks, checkGRPCHealth(ctx, cfg.Gateway.HealthGRPC))
		}
	}

	checks = append(checks, checkAudioSelection(ctx, cfg))
	if cfg.Audio.Playback {
		checks = append(checks, checkCommand(cfg.Audio.PlayerCmd.Argv, "player_cmd"))
	}
	if cfg.Indicator.Enable {
		checks = append(checks, checkBinary("busctl", "desktop notifications"))
	}

	return Report{Checks: checks}
}

func checkConfig(loaded config.Loaded) Check {
	message := fmt.Sprintf("loaded %q", loaded.Path)
	if !loaded.Exists {
		message = fmt.Sprintf("%q not found; using defaults", loaded.Path)
	}
	if len(loaded.EnvFiles) > 0 {
		message += fmt.Sprintf(" (env: %s)", strings.Join(loaded.EnvFiles, ", "))
	}
	return Check{Name: "config", Pass: true, Message: message}
}

func checkAPIKey(gw config.GatewayConfig) Check {
	if gw.APIKey() == "" {
		return Check{Name: "gateway.api_key", Pass: false, Message: fmt.Sprintf("%s is not set", gw.APIKeyEnv)}
	}
	return Check{Name: "gateway.api_key", Pass: true, Message: fmt.Sprintf("%s is set", gw.APIKeyEnv)}
}

// checkGatewayReachable treats any HTTP answer below 500 as reachable; the
// base URL itself is not an API route, so 401 and 404 are expected.
func checkGatewayReachable(ctx context.Context, baseURL string) Check {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL, nil)
	if err != nil {
		return Check{Name: "gateway.reachable", Pass: false, Message: fmt.Sprintf("invalid base_url: %v", err)}
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Check{Name: "gateway.reachable", Pass: false, Message: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return Check{Name: "gateway.reachable", Pass: false, Message: fmt.Sprintf("HTTP %d from %s", resp.StatusCode, baseURL)}
	}
	return Check{Name: "gateway.reachable", Pass: true, Message: fmt.Sprintf("HTTP %d from %s", resp.StatusCode, baseURL)}
}

// checkCommand validates that argv contains a runnable command.
func checkCommand(argv []string, name string) Check {
	if len(argv) == 0 {
		return Check{Name: name, Pass: false, Message: "command is empty"}
	}
	return checkBinary(argv[0], fmt.Sprintf("%s command is available", name))
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}

// checkAudioSelection runs live device selection to surface selection/fallback issues.
func checkAudioSelection(ctx context.Context, cfg config.Config) Check {
	selection, err := audio.SelectDevice(ctx, cfg.Audio.Input, cfg.Audio.Fallback)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}
