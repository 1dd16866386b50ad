// Package audio captures microphone utterances and plays synthesized speech
// through PulseAudio.
package audio

import (
	"context"
	"fmt"
	"strings"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
	"github.com/rbright/tandem/internal/fault"
)

const clientName = "tandem"

// Device describes one Pulse input source.
type Device struct {
	ID          string
	Description string
	State       string
	Available   bool
	Muted       bool
	Default     bool
}

// String formats the device for logs and status output.
func (d Device) String() string {
	description := strings.TrimSpace(d.Description)
	id := strings.TrimSpace(d.ID)
	switch {
	case description == "":
		return id
	case id == "":
		return description
	default:
		return fmt.Sprintf("%s (%s)", description, id)
	}
}

// Selection is the resolved capture source plus an optional fallback warning.
type Selection struct {
	Device   Device
	Warning  string
	Fallback bool
}

func newClient(icon string) (*pulse.Client, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName(clientName),
		pulse.ClientApplicationIconName(icon),
	)
	if err != nil {
		return nil, classifyPulseError(fmt.Errorf("connect pulse server: %w", err))
	}
	return client, nil
}

// ListDevices returns Pulse input sources with default and availability flags.
func ListDevices(_ context.Context) ([]Device, error) {
	client, err := newClient("audio-input-microphone")
	if err != nil {
		return nil, err
	}
	defer client.Close()

	defaultSource, err := client.DefaultSource()
	if err != nil {
		return nil, fault.Capture(fault.CaptureNoDevice, fmt.Errorf("read default source: %w", err))
	}
	defaultID := defaultSource.ID()

	var sourceInfos pulseproto.GetSourceInfoListReply
	if err := client.RawRequest(&pulseproto.GetSourceInfoList{}, &sourceInfos); err != nil {
		return nil, classifyPulseError(fmt.Errorf("list sources: %w", err))
	}

	devices := make([]Device, 0, len(sourceInfos))
	for _, source := range sourceInfos {
		if source == nil {
			continue
		}
		devices = append(devices, Device{
			ID:          source.SourceName,
			Description: source.Device,
			State:       sourceStateString(source.State),
			Available:   sourceAvailable(source),
			Muted:       source.Mute,
			Default:     source.SourceName == defaultID,
		})
	}
	return devices, nil
}

// SelectDevice resolves audio.input/audio.fallback preferences against live devices.
func SelectDevice(ctx context.Context, input string, fallback string) (Selection, error) {
	devices, err := ListDevices(ctx)
	if err != nil {
		return Selection{}, err
	}
	return selectDeviceFromList(devices, input, fallback)
}

// selectDeviceFromList prefers input, then fallback, then the default source.
// A muted or unplugged choice falls through to the next candidate.
func selectDeviceFromList(devices []Device, input string, fallback string) (Selection, error) {
	if len(devices) == 0 {
		return Selection{}, noDevice("no audio input devices found")
	}

	input = normalizeTerm(input)
	fallback = normalizeTerm(fallback)

	var defaultDevice, byInput, byFallback *Device
	for i := range devices {
		dev := &devices[i]
		if dev.Default {
			defaultDevice = dev
		}
		if byInput == nil && input != "" && deviceMatches(*dev, input) {
			byInput = dev
		}
		if byFallback == nil && fallback != "" && deviceMatches(*dev, fallback) {
			byFallback = dev
		}
	}

	primary := defaultDevice
	if input != "" {
		if byInput == nil {
			return Selection{}, noDevice(fmt.Sprintf("audio.input %q did not match any device", input))
		}
		primary = byInput
	}
	if primary == nil {
		return Selection{}, noDevice("default audio source is unavailable")
	}
	if usable(*primary) {
		return Selection{Device: *primary}, nil
	}

	reason := "unavailable"
	if primary.Muted {
		reason = "muted"
	}

	candidate := defaultDevice
	if fallback != "" {
		if byFallback == nil {
			return Selection{}, noDevice(fmt.Sprintf("primary input %q is %s and fallback %q not found", primary.ID, reason, fallback))
		}
		candidate = byFallback
	}
	if candidate == nil {
		return Selection{}, noDevice(fmt.Sprintf("primary input %q is %s and no default source exists", primary.ID, reason))
	}
	if !candidate.Available {
		return Selection{}, noDevice(fmt.Sprintf("audio fallback device %q is not available", candidate.ID))
	}
	if candidate.Muted {
		return Selection{}, noDevice(fmt.Sprintf("audio fallback device %q is muted", candidate.ID))
	}

	return Selection{
		Device:   *candidate,
		Warning:  fmt.Sprintf("audio.input %q is %s; falling back to %q", primary.ID, reason, candidate.ID),
		Fallback: primary.ID != candidate.ID,
	}, nil
}

func usable(dev Device) bool {
	return dev.Available && !dev.Muted
}

func normalizeTerm(term string) string {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "default" {
		return ""
	}
	return term
}

func noDevice(msg string) error {
	return fault.Capture(fault.CaptureNoDevice, fmt.Errorf("%s", msg))
}

// deviceMatches reports whether a search term matches a device id or description.
func deviceMatches(device Device, term string) bool {
	if term == "" {
		return false
	}
	return strings.Contains(strings.ToLower(device.ID), term) ||
		strings.Contains(strings.ToLower(device.Description), term)
}

// classifyPulseError separates access-control refusals from other failures.
func classifyPulseError(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "access denied") || strings.Contains(msg, "permission denied") {
		return fault.Capture(fault.CaptureNotAllowed, err)
	}
	return fault.Capture(fault.CaptureOther, err)
}

func sourceStateString(state uint32) string {
	switch state {
	case 0:
		return "running"
	case 1:
		return "idle"
	case 2:
		return "suspended"
	default:
		return fmt.Sprintf("unknown(%d)", state)
	}
}

// sourceAvailable checks the active port; PulseAudio reports unknown=0, no=1, yes=2.
func sourceAvailable(source *pulseproto.GetSourceInfoReply) bool {
	if source == nil {
		return false
	}
	if len(source.Ports) == 0 {
		return true
	}
	for _, port := range source.Ports {
		if port.Name == source.ActivePortName {
			return port.Available != 1
		}
	}
	return true
}
