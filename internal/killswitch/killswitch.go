// Package killswitch manages the durable trading halt flag.
//
// The switch is a JSON sentinel file on disk so its state survives
// restarts. Readers always go back to the file; state is never cached
// across pipeline steps, which keeps a long-running pipeline from acting
// on a stale gate.
package killswitch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// State is the durable kill-switch record. Version increments on every
// activation so operators can tell re-activations apart.
type State struct {
	Active      bool      `json:"active"`
	Reason      string    `json:"reason,omitempty"`
	ActivatedAt time.Time `json:"activated_at,omitempty"`
	Version     int       `json:"version"`
}

// Switch reads and writes the sentinel file. The scheduler process is
// the sole writer; re-read-before-use substitutes for locking.
type Switch struct {
	path string
}

// New creates a Switch backed by the given sentinel path.
func New(path string) *Switch {
	return &Switch{path: path}
}

// State re-reads the sentinel from disk. A missing file means inactive.
func (s *Switch) State() (State, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return State{Active: false}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("read kill switch: %w", err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		// An unreadable sentinel is treated as active: fail closed.
		return State{Active: true, Reason: "unreadable sentinel file"}, nil
	}
	return st, nil
}

// IsActive re-reads the sentinel and reports whether trading is halted.
func (s *Switch) IsActive() bool {
	st, err := s.State()
	if err != nil {
		// Fail closed on read errors.
		return true
	}
	return st.Active
}

// Activate halts trading with a single durable write.
func (s *Switch) Activate(reason string) (State, error) {
	prev, _ := s.State()

	st := State{
		Active:      true,
		Reason:      reason,
		ActivatedAt: time.Now().UTC(),
		Version:     prev.Version + 1,
	}

	if err := s.write(st); err != nil {
		return State{}, err
	}
	return st, nil
}

// Deactivate clears the halt. Callers are expected to have confirmed
// the operation explicitly before reaching this point.
func (s *Switch) Deactivate() (bool, error) {
	prev, err := s.State()
	if err != nil {
		return false, err
	}
	if !prev.Active {
		return false, nil
	}

	st := State{
		Active:  false,
		Version: prev.Version,
	}
	if err := s.write(st); err != nil {
		return false, err
	}
	return true, nil
}

// write persists the state atomically (temp file + rename).
func (s *Switch) write(st State) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create kill switch dir: %w", err)
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal kill switch state: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write kill switch: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("commit kill switch: %w", err)
	}
	return nil
}
