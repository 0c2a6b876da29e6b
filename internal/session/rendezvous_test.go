package session

import (
	"testing"
	"time"
)

func TestEnterBreakBlocksUntilResolved(t *testing.T) {
	c := NewBreakCoordinator()

	got := make(chan Action, 1)
	go func() {
		got <- c.EnterBreak()
	}()

	// Wait for the thread to park.
	deadline := time.Now().Add(time.Second)
	for !c.Waiting() {
		if time.Now().After(deadline) {
			t.Fatalf("EnterBreak never parked")
		}
		time.Sleep(time.Millisecond)
	}

	if !c.Resolve(ActionStepOver) {
		t.Fatalf("Resolve() = false, want true")
	}
	select {
	case a := <-got:
		if a != ActionStepOver {
			t.Errorf("EnterBreak() = %v, want stepOver", a)
		}
	case <-time.After(time.Second):
		t.Fatalf("EnterBreak did not return after Resolve")
	}
	if c.Waiting() {
		t.Errorf("Waiting() after resolution = true, want false")
	}
}

func TestResolveWithNothingPendingIsNoOp(t *testing.T) {
	c := NewBreakCoordinator()
	if c.Resolve(ActionRun) {
		t.Errorf("Resolve() with nothing pending = true, want false")
	}
}

func TestForceResolveReleasesWithRun(t *testing.T) {
	c := NewBreakCoordinator()

	got := make(chan Action, 1)
	go func() {
		got <- c.EnterBreak()
	}()
	for !c.Waiting() {
		time.Sleep(time.Millisecond)
	}

	c.ForceResolve()
	select {
	case a := <-got:
		if a != ActionRun {
			t.Errorf("EnterBreak() after ForceResolve = %v, want run", a)
		}
	case <-time.After(time.Second):
		t.Fatalf("parked thread not released by ForceResolve")
	}
}

func TestReentrantBreakPanics(t *testing.T) {
	c := NewBreakCoordinator()

	go c.EnterBreak()
	for !c.Waiting() {
		time.Sleep(time.Millisecond)
	}
	defer c.ForceResolve()

	defer func() {
		if recover() == nil {
			t.Errorf("second EnterBreak did not panic")
		}
	}()
	c.EnterBreak()
}
