//go:build linux

package uevent

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type pollStep[T any] struct {
	item T
	cont bool
	err  error
}

type fakeDriver[T any] struct {
	mu        sync.Mutex
	fd        int
	fdCalls   int
	pollCalls int
	steps     []pollStep[T]
}

func (d *fakeDriver[T]) FD() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fdCalls++
	return d.fd
}

func (d *fakeDriver[T]) Poll() (T, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var zero T
	d.pollCalls++

	if len(d.steps) == 0 {
		return zero, false, errors.New("no more steps")
	}
	s := d.steps[0]
	d.steps = d.steps[1:]
	return s.item, s.cont, s.err
}

func TestPollerWait_RetriesOnErrAgain(t *testing.T) {
	d := &fakeDriver[int]{
		fd: -1, // keeps the unix.Poll path out of reach even if wait becomes true
		steps: []pollStep[int]{
			{item: 0, cont: false, err: ErrAgain},
			{item: 42, cont: false, err: nil},
		},
	}
	p := NewPoller[int](d)

	start := time.Now()
	item, err := p.Wait(0)
	if err != nil {
		t.Fatalf("expected nil err, got %v", err)
	}
	if item != 42 {
		t.Fatalf("expected item=42, got %v", item)
	}
	if d.pollCalls < 2 {
		t.Fatalf("expected >=2 Poll calls, got %d", d.pollCalls)
	}
	if time.Since(start) < 5*time.Millisecond {
		t.Fatalf("expected a small delay from the retry sleep, got %v", time.Since(start))
	}
}

func TestPollerWait_ContKeepsWaitFalse(t *testing.T) {
	d := &fakeDriver[int]{
		fd: -1,
		steps: []pollStep[int]{
			{item: 1, cont: true, err: nil},
			{item: 2, cont: false, err: nil},
		},
	}
	p := NewPoller[int](d)

	item, err := p.Wait(0)
	if err != nil || item != 1 {
		t.Fatalf("first Wait: expected (1,nil), got (%v,%v)", item, err)
	}
	if d.fdCalls != 0 {
		t.Fatalf("expected FD() not called yet, got %d", d.fdCalls)
	}

	item, err = p.Wait(0)
	if err != nil || item != 2 {
		t.Fatalf("second Wait: expected (2,nil), got (%v,%v)", item, err)
	}
	if d.fdCalls != 0 {
		t.Fatalf("expected FD() still not called, got %d", d.fdCalls)
	}
}

func TestPollerWait_CallsFDOnlyWhenWaitTrue(t *testing.T) {
	d := &fakeDriver[int]{
		fd: -1,
		steps: []pollStep[int]{
			{item: 7, cont: false, err: nil},
		},
	}
	p := NewPoller[int](d)
	p.wait = true

	item, err := p.Wait(0)
	if err != nil || item != 7 {
		t.Fatalf("expected (7,nil), got (%v,%v)", item, err)
	}
	if d.fdCalls != 1 {
		t.Fatalf("expected FD() called exactly once, got %d", d.fdCalls)
	}
	if !p.wait {
		t.Fatalf("expected wait=true after cont=false, got false")
	}
}
