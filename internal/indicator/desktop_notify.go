package indicator

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

const (
	urgencyNormal   = 1
	urgencyCritical = 2
)

// desktopNotify sends a freedesktop notification over DBus via busctl and
// returns the id assigned by the server. A non-zero replaceID updates that
// notification in place.
func desktopNotify(ctx context.Context, appName string, replaceID uint32, summary string, body string, urgency int, timeoutMS int) (uint32, error) {
	out, err := busCall(ctx,
		"Notify",
		"susssasa{sv}i",
		appName,
		strconv.FormatUint(uint64(replaceID), 10),
		"audio-input-microphone",
		summary,
		body,
		"0", // actions
		"1", "urgency", "y", strconv.Itoa(urgency),
		strconv.Itoa(timeoutMS),
	)
	if err != nil {
		return 0, fmt.Errorf("desktop notify: %w", err)
	}

	fields := strings.Fields(out)
	if len(fields) < 2 || fields[0] != "u" {
		return 0, fmt.Errorf("desktop notify invalid response: %q", out)
	}
	value, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("desktop notify parse id %q: %w", fields[1], err)
	}
	return uint32(value), nil
}

// desktopDismiss closes a notification by id.
func desktopDismiss(ctx context.Context, id uint32) error {
	if _, err := busCall(ctx, "CloseNotification", "u", strconv.FormatUint(uint64(id), 10)); err != nil {
		return fmt.Errorf("desktop dismiss: %w", err)
	}
	return nil
}

func busCall(ctx context.Context, method string, args ...string) (string, error) {
	argv := append([]string{
		"--user",
		"call",
		"org.freedesktop.Notifications",
		"/org/freedesktop/Notifications",
		"org.freedesktop.Notifications",
		method,
	}, args...)

	out, err := exec.CommandContext(ctx, "busctl", argv...).CombinedOutput()
	trimmed := strings.TrimSpace(string(out))
	if err != nil {
		if trimmed == "" {
			return "", err
		}
		return "", fmt.Errorf("%w (%s)", err, trimmed)
	}
	return trimmed, nil
}
