package sweeper

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

type fakeTarget struct {
	calls int
	now   time.Time
	grace time.Duration
	n     int
	err   error
}

func (f *fakeTarget) SweepMissed(_ context.Context, now time.Time, grace time.Duration) (int, error) {
	f.calls++
	f.now = now
	f.grace = grace
	return f.n, f.err
}

func testLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, nil)), &buf
}

func TestRunPassesClockAndGrace(t *testing.T) {
	logger, buf := testLogger()
	target := &fakeTarget{n: 2}
	s := New(target, "@every 5m", 15*time.Minute, logger)
	fixed := time.Date(2026, 2, 5, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	if n := s.Run(context.Background()); n != 2 {
		t.Errorf("Run = %d, want 2", n)
	}
	if !target.now.Equal(fixed) {
		t.Errorf("now = %v, want %v", target.now, fixed)
	}
	if target.grace != 15*time.Minute {
		t.Errorf("grace = %v, want 15m", target.grace)
	}
	if !strings.Contains(buf.String(), "count=2") {
		t.Errorf("expected count in log, got %q", buf.String())
	}
}

func TestRunLogsErrors(t *testing.T) {
	logger, buf := testLogger()
	s := New(&fakeTarget{err: errors.New("boom")}, "@every 5m", time.Minute, logger)

	if n := s.Run(context.Background()); n != 0 {
		t.Errorf("Run = %d, want 0", n)
	}
	if !strings.Contains(buf.String(), "level=ERROR") || !strings.Contains(buf.String(), "boom") {
		t.Errorf("expected error log, got %q", buf.String())
	}
}

func TestStartRejectsBadSchedule(t *testing.T) {
	logger, _ := testLogger()
	s := New(&fakeTarget{}, "not a schedule", time.Minute, logger)
	if err := s.Start(); err == nil {
		s.Stop()
		t.Fatal("expected error for invalid schedule")
	}
}

func TestStartDisabledWithEmptySchedule(t *testing.T) {
	logger, buf := testLogger()
	s := New(&fakeTarget{}, "", time.Minute, logger)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.Stop()
	if !strings.Contains(buf.String(), "disabled") {
		t.Errorf("expected disabled log, got %q", buf.String())
	}
}

func TestStartStop(t *testing.T) {
	logger, _ := testLogger()
	s := New(&fakeTarget{}, "@every 1h", time.Minute, logger)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	s.Stop()
	s.Stop()
}
