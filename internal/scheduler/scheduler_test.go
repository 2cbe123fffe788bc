package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestParser(t *testing.T) {
	for _, spec := range []string{"0 0 2 * * *", "*/5 * * * *", "@daily", "@every 1h"} {
		if _, err := Parser.Parse(spec); err != nil {
			t.Errorf("Parse(%q): %v", spec, err)
		}
	}
	if _, err := Parser.Parse("not a schedule"); err == nil {
		t.Error("expected error for invalid spec")
	}
}

func TestAdd_InvalidSpec(t *testing.T) {
	s := New(0)
	if err := s.Add("bad", "61 * * * *", func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected error")
	}
}

func TestAdd_ReplacesByName(t *testing.T) {
	s := New(0)
	job := func(context.Context) error { return nil }
	if err := s.Add("export", "@daily", job); err != nil {
		t.Fatal(err)
	}
	if err := s.Add("export", "@hourly", job); err != nil {
		t.Fatal(err)
	}
	if got := len(s.cron.Entries()); got != 1 {
		t.Errorf("expected 1 entry, got %d", got)
	}
	if !s.Next("missing").IsZero() {
		t.Error("unknown job should have zero next time")
	}
}

func TestRunNow_TimeoutAndRecover(t *testing.T) {
	s := New(20 * time.Millisecond)
	var sawDeadline atomic.Bool
	s.RunNow("slow", func(ctx context.Context) error {
		<-ctx.Done()
		sawDeadline.Store(errors.Is(ctx.Err(), context.DeadlineExceeded))
		return ctx.Err()
	})
	if !sawDeadline.Load() {
		t.Error("job context should carry the timeout")
	}

	s.RunNow("panics", func(context.Context) error { panic("boom") })
}

func TestStartStop(t *testing.T) {
	s := New(0)
	var runs atomic.Int32
	if err := s.Add("tick", "@every 10ms", func(context.Context) error {
		runs.Add(1)
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	s.Start()
	deadline := time.Now().Add(3 * time.Second)
	for runs.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if runs.Load() == 0 {
		t.Error("job never ran")
	}
}
