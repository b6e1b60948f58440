package killswitch

import (
	"os"
	"path/filepath"
	"testing"
)

func TestActivateDeactivate(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".kill_switch")
	sw := New(path)

	if sw.IsActive() {
		t.Fatal("fresh switch should be inactive")
	}

	st, err := sw.Activate("broker disconnects during open")
	if err != nil {
		t.Fatalf("Activate() failed: %v", err)
	}
	if !st.Active || st.Version != 1 {
		t.Errorf("unexpected state after activate: %+v", st)
	}
	if st.ActivatedAt.IsZero() {
		t.Error("ActivatedAt not set")
	}

	if !sw.IsActive() {
		t.Error("switch should be active")
	}

	deactivated, err := sw.Deactivate()
	if err != nil {
		t.Fatalf("Deactivate() failed: %v", err)
	}
	if !deactivated {
		t.Error("Deactivate() should report true for an active switch")
	}
	if sw.IsActive() {
		t.Error("switch should be inactive after deactivate")
	}

	// Deactivating an inactive switch is a no-op.
	deactivated, err = sw.Deactivate()
	if err != nil {
		t.Fatalf("Deactivate() failed: %v", err)
	}
	if deactivated {
		t.Error("Deactivate() should report false for an inactive switch")
	}
}

func TestStateSurvivesNewSwitch(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".kill_switch")

	if _, err := New(path).Activate("manual halt"); err != nil {
		t.Fatalf("Activate() failed: %v", err)
	}

	// A fresh Switch over the same file sees the durable state.
	st, err := New(path).State()
	if err != nil {
		t.Fatalf("State() failed: %v", err)
	}
	if !st.Active || st.Reason != "manual halt" {
		t.Errorf("state not durable: %+v", st)
	}
}

func TestVersionIncrementsPerActivation(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".kill_switch")
	sw := New(path)

	sw.Activate("first")
	sw.Deactivate()
	st, _ := sw.Activate("second")

	if st.Version != 2 {
		t.Errorf("Version = %d, want 2", st.Version)
	}
}

func TestUnreadableSentinelFailsClosed(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".kill_switch")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	sw := New(path)
	if !sw.IsActive() {
		t.Error("corrupt sentinel must read as active")
	}
}
