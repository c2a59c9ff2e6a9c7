package audio

import (
	"fmt"
	"strings"
)

// Device describes a capture device reported by the audio backend.
type Device struct {
	ID        string `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	IsDefault bool   `json:"is_default" yaml:"is_default"`
}

// FindDevice resolves a configured device against the available ones. The
// selector matches a device ID exactly or a device name case-insensitively. An
// empty selector or "default" selects the system default and returns nil.
func FindDevice(selector string, devices []Device) (*Device, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" || strings.EqualFold(selector, "default") {
		return nil, nil
	}

	for i := range devices {
		if devices[i].ID == selector {
			return &devices[i], nil
		}
	}

	matches := findDeviceNameMatches(selector, devices)
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, selector)
	case 1:
		return &devices[matches[0]], nil
	}
	ids := make([]string, 0, len(matches))
	for _, i := range matches {
		ids = append(ids, devices[i].ID)
	}
	return nil, fmt.Errorf("%w: %q matches devices %s, configure an ID instead",
		ErrAmbiguousDevice, selector, strings.Join(ids, ", "))
}

func findDeviceNameMatches(name string, devices []Device) []int {
	var matches []int
	for i, d := range devices {
		if strings.EqualFold(strings.TrimSpace(d.Name), name) {
			matches = append(matches, i)
		}
	}
	return matches
}
