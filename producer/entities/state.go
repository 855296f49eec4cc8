package entities

import (
	"sync"
	"time"

	"github.com/vpbank/ups_collector/models"
)

// deviceState is what the producer remembers about one device between
// refreshes.
type deviceState struct {
	identity    models.Device
	lastSuccess time.Time
	// raised holds the unique IDs of alerts currently raised.
	raised map[string]bool
}

// DeviceState tracks per-device alert edges and last known identity. Safe for
// concurrent use.
type DeviceState struct {
	mu      sync.Mutex
	devices map[string]*deviceState
}

// NewDeviceState returns an empty tracker.
func NewDeviceState() *DeviceState {
	return &DeviceState{devices: make(map[string]*deviceState)}
}

// Forget drops everything known about device.
func (s *DeviceState) Forget(device string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.devices, device)
}

// Raised returns the number of alerts currently raised for device.
func (s *DeviceState) Raised(device string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.devices[device]; ok {
		return len(st.raised)
	}
	return 0
}

func (s *DeviceState) get(device string) *deviceState {
	st, ok := s.devices[device]
	if !ok {
		st = &deviceState{raised: make(map[string]bool)}
		s.devices[device] = st
	}
	return st
}

// transition records the new on/off state of alert id and reports the action
// to emit: AlertRaise on an off→on edge, AlertDismiss on on→off, "" otherwise.
func (st *deviceState) transition(id string, on bool) string {
	switch {
	case on && !st.raised[id]:
		st.raised[id] = true
		return models.AlertRaise
	case !on && st.raised[id]:
		delete(st.raised, id)
		return models.AlertDismiss
	}
	return ""
}
