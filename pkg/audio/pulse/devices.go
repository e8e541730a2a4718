package pulse

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"

	"github.com/MrWong99/vitalvoice/pkg/audio"
)

// Selection is the resolved capture source, with a warning when the
// preferred device could not be used.
type Selection struct {
	Device   audio.Device
	Warning  string
	Fallback bool
}

// ListDevices connects to the Pulse server and returns its input sources.
func ListDevices(_ context.Context) ([]audio.Device, error) {
	client, err := newClient()
	if err != nil {
		return nil, err
	}
	defer client.Close()
	return listSources(client)
}

func listSources(client *pulse.Client) ([]audio.Device, error) {
	defaultSource, err := client.DefaultSource()
	if err != nil {
		return nil, fmt.Errorf("pulse: read default source: %w", err)
	}
	defaultID := defaultSource.ID()

	var infos pulseproto.GetSourceInfoListReply
	if err := client.RawRequest(&pulseproto.GetSourceInfoList{}, &infos); err != nil {
		return nil, fmt.Errorf("pulse: list sources: %w", err)
	}

	devices := make([]audio.Device, 0, len(infos))
	for _, src := range infos {
		if src == nil {
			continue
		}
		devices = append(devices, audio.Device{
			ID:          src.SourceName,
			Description: src.Device,
			State:       sourceState(src.State),
			Available:   sourceAvailable(src),
			Muted:       src.Mute,
			Default:     src.SourceName == defaultID,
		})
	}
	return devices, nil
}

// selectDevice resolves the input and fallback preferences against devices.
// "" and "default" mean the server's default source. A muted or unavailable
// primary falls back to the fallback device, or to the default source.
func selectDevice(devices []audio.Device, input, fallback string) (Selection, error) {
	if len(devices) == 0 {
		return Selection{}, errors.New("pulse: no audio input devices found")
	}

	input = strings.ToLower(strings.TrimSpace(input))
	fallback = strings.ToLower(strings.TrimSpace(fallback))

	var defaultDev, byInput, byFallback *audio.Device
	for i := range devices {
		d := &devices[i]
		if d.Default {
			defaultDev = d
		}
		if byInput == nil && !isDefault(input) && deviceMatches(*d, input) {
			byInput = d
		}
		if byFallback == nil && !isDefault(fallback) && deviceMatches(*d, fallback) {
			byFallback = d
		}
	}

	primary := defaultDev
	if !isDefault(input) {
		if byInput == nil {
			return Selection{}, fmt.Errorf("pulse: input %q did not match any device", input)
		}
		primary = byInput
	}
	if primary == nil {
		return Selection{}, errors.New("pulse: default audio source is unavailable")
	}
	if primary.Available && !primary.Muted {
		return Selection{Device: *primary}, nil
	}

	reason := "unavailable"
	if primary.Muted {
		reason = "muted"
	}

	next := defaultDev
	if !isDefault(fallback) {
		if byFallback == nil {
			return Selection{}, fmt.Errorf("pulse: input %q is %s and fallback %q not found", primary.ID, reason, fallback)
		}
		next = byFallback
	}
	if next == nil {
		return Selection{}, fmt.Errorf("pulse: input %q is %s and no default source exists", primary.ID, reason)
	}
	if !next.Available {
		return Selection{}, fmt.Errorf("pulse: fallback device %q is not available", next.ID)
	}
	if next.Muted {
		return Selection{}, fmt.Errorf("pulse: fallback device %q is muted", next.ID)
	}

	return Selection{
		Device:   *next,
		Warning:  fmt.Sprintf("input %q is %s; falling back to %q", primary.ID, reason, next.ID),
		Fallback: primary.ID != next.ID,
	}, nil
}

func isDefault(pref string) bool { return pref == "" || pref == "default" }

// deviceMatches reports whether term is part of the device id or description.
func deviceMatches(d audio.Device, term string) bool {
	if term == "" {
		return false
	}
	return strings.Contains(strings.ToLower(d.ID), term) ||
		strings.Contains(strings.ToLower(d.Description), term)
}

func sourceState(state uint32) string {
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

// sourceAvailable reads the availability of the source's active port.
// PulseAudio reports unknown=0, no=1, yes=2.
func sourceAvailable(src *pulseproto.GetSourceInfoReply) bool {
	if src == nil {
		return false
	}
	for _, port := range src.Ports {
		if port.Name == src.ActivePortName {
			return port.Available != 1
		}
	}
	return true
}
