package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/quantfell/rotator/internal/contracts"
	"github.com/quantfell/rotator/pkg/logger"
)

type recordingNotifier struct {
	mu       sync.Mutex
	subjects []string
}

func (n *recordingNotifier) NotifyFailure(_ context.Context, subject, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subjects = append(n.subjects, subject)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subjects)
}

func testScheduler(statusFile string) (*Scheduler, *recordingNotifier) {
	notifier := &recordingNotifier{}
	s := New(Config{
		TickInterval:   10 * time.Millisecond,
		MaxRetries:     3,
		RetryBaseDelay: time.Millisecond,
		StatusFile:     statusFile,
	}, notifier, logger.Nop())
	return s, notifier
}

func TestBackoff(t *testing.T) {
	base := time.Minute
	for _, tc := range []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Minute},
		{2, 2 * time.Minute},
		{3, 4 * time.Minute},
		{4, 8 * time.Minute},
	} {
		if got := Backoff(base, tc.attempt); got != tc.want {
			t.Errorf("Backoff(1m, %d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}

func TestTriggerSpecCronExpr(t *testing.T) {
	tests := []struct {
		spec    TriggerSpec
		want    string
		wantErr bool
	}{
		{"16:35", "35 16 * * *", false},
		{"08:00", "0 8 * * *", false},
		{"MON 08:00", "0 8 * * 1", false},
		{"sun 23:59", "59 23 * * 0", false},
		{"FRI 16:45", "45 16 * * 5", false},
		{"25:00", "", true},
		{"MONDAY 08:00", "", true},
		{"MON 08:00 extra", "", true},
		{"", "", true},
	}
	for _, tc := range tests {
		got, err := tc.spec.CronExpr()
		if tc.wantErr {
			if err == nil {
				t.Errorf("CronExpr(%q) = %q, want error", tc.spec, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("CronExpr(%q): %v", tc.spec, err)
			continue
		}
		if got != tc.want {
			t.Errorf("CronExpr(%q) = %q, want %q", tc.spec, got, tc.want)
		}
	}
}

func TestTriggerSpecNextFireUTC(t *testing.T) {
	schedule, err := TriggerSpec("MON 08:00").Schedule()
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	// Saturday 2026-08-29 12:00 UTC; next Monday is the 31st.
	from := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	next := schedule.Next(from)
	want := time.Date(2026, 8, 31, 8, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("next fire = %v, want %v", next, want)
	}
}

func TestRegisterRejectsBadTrigger(t *testing.T) {
	s, _ := testScheduler("")
	err := s.Register(Job{Name: "broken", Trigger: "whenever"})
	if err == nil {
		t.Fatal("expected error for invalid trigger")
	}
}

func TestRegisterRejectsDuplicateName(t *testing.T) {
	s, _ := testScheduler("")
	noop := func(context.Context) error { return nil }
	if err := s.Register(Job{Name: "rebalance", Trigger: "08:00", Handler: noop}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := s.Register(Job{Name: "rebalance", Trigger: "09:00", Handler: noop}); err == nil {
		t.Fatal("expected error for duplicate job name")
	}
}

func TestTriggerNowRetriesThenSucceeds(t *testing.T) {
	s, notifier := testScheduler("")

	calls := 0
	handler := func(context.Context) error {
		calls++
		if calls < 3 {
			return fmt.Errorf("attempt %d failed", calls)
		}
		return nil
	}
	if err := s.Register(Job{Name: "flaky", Trigger: "08:00", Handler: handler}); err != nil {
		t.Fatalf("register: %v", err)
	}

	run, err := s.TriggerNow(context.Background(), "flaky")
	if err != nil {
		t.Fatalf("TriggerNow: %v", err)
	}
	if run.Status != RunStatusSuccess {
		t.Errorf("status = %s, want success (%s)", run.Status, run.Error)
	}
	if run.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", run.Attempts)
	}
	if notifier.count() != 0 {
		t.Errorf("webhook fired %d times, want 0 (run eventually succeeded)", notifier.count())
	}
}

func TestTriggerNowExhaustsRetries(t *testing.T) {
	s, notifier := testScheduler("")

	calls := 0
	handler := func(context.Context) error {
		calls++
		return errors.New("broker unreachable")
	}
	if err := s.Register(Job{Name: "doomed", Trigger: "08:00", Handler: handler}); err != nil {
		t.Fatalf("register: %v", err)
	}

	run, err := s.TriggerNow(context.Background(), "doomed")
	if err != nil {
		t.Fatalf("TriggerNow: %v", err)
	}
	if run.Status != RunStatusFailed {
		t.Errorf("status = %s, want failed", run.Status)
	}
	if calls != 3 {
		t.Errorf("handler called %d times, want 3", calls)
	}
	if run.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", run.Attempts)
	}
	if notifier.count() != 1 {
		t.Errorf("webhook fired %d times, want exactly 1", notifier.count())
	}
}

func TestLastSuccessSurvivesFailedRun(t *testing.T) {
	s, _ := testScheduler("")

	fail := false
	handler := func(context.Context) error {
		if fail {
			return errors.New("boom")
		}
		return nil
	}
	if err := s.Register(Job{Name: "snapshot", Trigger: "16:35", Handler: handler}); err != nil {
		t.Fatalf("register: %v", err)
	}

	good, err := s.TriggerNow(context.Background(), "snapshot")
	if err != nil {
		t.Fatalf("TriggerNow: %v", err)
	}

	fail = true
	bad, err := s.TriggerNow(context.Background(), "snapshot")
	if err != nil {
		t.Fatalf("TriggerNow: %v", err)
	}
	if bad.Status != RunStatusFailed {
		t.Fatalf("second run status = %s, want failed", bad.Status)
	}

	job := s.Status().Jobs["snapshot"]
	if job.LastRun == nil || job.LastRun.Status != RunStatusFailed {
		t.Fatalf("last run = %+v, want failed", job.LastRun)
	}
	if job.LastSuccess == nil {
		t.Fatal("last success erased by the failed run")
	}
	if !job.LastSuccess.Equal(good.FinishedAt) {
		t.Errorf("last success = %v, want %v", job.LastSuccess, good.FinishedAt)
	}

	data, err := json.Marshal(s.Status())
	if err != nil {
		t.Fatalf("marshal status: %v", err)
	}
	if !strings.Contains(string(data), `"last_success"`) {
		t.Errorf("status JSON missing last_success: %s", data)
	}
}

func TestPerJobRetryOverride(t *testing.T) {
	s, notifier := testScheduler("")

	calls := 0
	handler := func(context.Context) error {
		calls++
		return errors.New("broker unreachable")
	}
	// Scheduler default is 3 attempts; this job allows only 1.
	if err := s.Register(Job{Name: "fragile", Trigger: "08:00", Handler: handler, MaxRetries: 1}); err != nil {
		t.Fatalf("register: %v", err)
	}

	run, err := s.TriggerNow(context.Background(), "fragile")
	if err != nil {
		t.Fatalf("TriggerNow: %v", err)
	}
	if run.Status != RunStatusFailed {
		t.Errorf("status = %s, want failed", run.Status)
	}
	if calls != 1 {
		t.Errorf("handler called %d times, want 1", calls)
	}
	if notifier.count() != 1 {
		t.Errorf("webhook fired %d times, want exactly 1", notifier.count())
	}
}

func TestTriggerNowUnknownJob(t *testing.T) {
	s, _ := testScheduler("")
	if _, err := s.TriggerNow(context.Background(), "ghost"); !errors.Is(err, contracts.ErrJobNotFound) {
		t.Fatalf("err = %v, want ErrJobNotFound", err)
	}
}

func TestOverlappingFiringSkipped(t *testing.T) {
	s, _ := testScheduler("")

	release := make(chan struct{})
	started := make(chan struct{})
	runs := 0
	handler := func(context.Context) error {
		runs++
		close(started)
		<-release
		return nil
	}
	if err := s.Register(Job{Name: "rebalance", Trigger: "08:00", Handler: handler}); err != nil {
		t.Fatalf("register: %v", err)
	}

	// Force the entry due and tick: the job starts running.
	now := time.Now().UTC()
	s.mu.Lock()
	s.entries[0].next = now.Add(-time.Second)
	s.mu.Unlock()
	s.tick(context.Background(), now)
	<-started

	// Second due firing while still running: skipped, not queued.
	s.mu.Lock()
	s.entries[0].next = now.Add(-time.Second)
	s.mu.Unlock()
	s.tick(context.Background(), now)

	status := s.Status().Jobs["rebalance"]
	if status.SkippedFirings != 1 {
		t.Errorf("skipped firings = %d, want 1", status.SkippedFirings)
	}
	if !status.Running {
		t.Error("job should still be running")
	}

	close(release)
	s.wg.Wait()

	if runs != 1 {
		t.Errorf("handler ran %d times, want 1 (skipped firing must not queue)", runs)
	}
	if got := s.Status().Jobs["rebalance"]; got.Running {
		t.Error("job still marked running after completion")
	}
}

func TestTriggerNowWhileRunning(t *testing.T) {
	s, _ := testScheduler("")

	release := make(chan struct{})
	started := make(chan struct{})
	handler := func(context.Context) error {
		close(started)
		<-release
		return nil
	}
	if err := s.Register(Job{Name: "slow", Trigger: "08:00", Handler: handler}); err != nil {
		t.Fatalf("register: %v", err)
	}

	now := time.Now().UTC()
	s.mu.Lock()
	s.entries[0].next = now.Add(-time.Second)
	s.mu.Unlock()
	s.tick(context.Background(), now)
	<-started

	if _, err := s.TriggerNow(context.Background(), "slow"); !errors.Is(err, contracts.ErrJobRunning) {
		t.Errorf("err = %v, want ErrJobRunning", err)
	}

	close(release)
	s.wg.Wait()
}

func TestStatusPersistedAcrossTransitions(t *testing.T) {
	statusFile := filepath.Join(t.TempDir(), "scheduler_status.json")
	s, _ := testScheduler(statusFile)

	if err := s.Register(Job{Name: "snapshot", Trigger: "16:35", Handler: func(context.Context) error { return nil }}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := s.TriggerNow(context.Background(), "snapshot"); err != nil {
		t.Fatalf("TriggerNow: %v", err)
	}

	snap, err := LoadStatus(statusFile)
	if err != nil {
		t.Fatalf("LoadStatus: %v", err)
	}
	if snap == nil {
		t.Fatal("no status file written")
	}
	if len(snap.Jobs) != 1 {
		t.Fatalf("jobs = %+v, want one entry", snap.Jobs)
	}
	job, ok := snap.Jobs["snapshot"]
	if !ok {
		t.Fatalf("jobs = %+v, want map keyed by job name", snap.Jobs)
	}
	last := job.LastRun
	if last == nil || last.Status != RunStatusSuccess {
		t.Fatalf("last run = %+v, want success", last)
	}
	if job.LastSuccess == nil || !job.LastSuccess.Equal(last.FinishedAt) {
		t.Fatalf("last success = %v, want %v", job.LastSuccess, last.FinishedAt)
	}
}

func TestLoadStatusMissingFile(t *testing.T) {
	snap, err := LoadStatus(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("LoadStatus: %v", err)
	}
	if snap != nil {
		t.Fatalf("snap = %+v, want nil", snap)
	}
}
