//go:build linux

package uevent

import (
	"errors"
	"log"
	"time"

	"golang.org/x/sys/unix"
)

// PollDriver is anything Poller can drain: a pollable file descriptor plus
// a single non-blocking attempt to produce one item of T. Monitor
// implements this directly over its netlink socket.
type PollDriver[T any] interface {
	// FD returns a non-blocking descriptor. Once it is readable, Poll is
	// expected to return data without waiting further.
	FD() int

	// Poll attempts to retrieve one item.
	//
	// Return values:
	//   T:     the retrieved item (invalid if err is ErrAgain)
	//   bool:  whether more data is immediately ready without waiting on
	//          I/O readiness again
	//   error: nil on success; ErrAgain means retry without waiting; any
	//          other error aborts the attempt.
	Poll() (T, bool, error)
}

// Poller drives a PollDriver with poll(2), retrying on ErrAgain without
// busy-looping on the CPU.
type Poller[T any] struct {
	drv  PollDriver[T]
	fd   int
	wait bool
}

// NewPoller wraps drv. The first call assumes Poll can be attempted
// immediately, without waiting on the descriptor first.
func NewPoller[T any](drv PollDriver[T]) *Poller[T] {
	return &Poller[T]{drv: drv, fd: -1}
}

// Wait returns one item from drv. timeout (negative means forever) bounds
// each wait on the descriptor; when that wait ends, drv.Poll is called
// regardless. ErrAgain results are retried after a short sleep with no overall
// limit, so Wait returns only with an item or with a non-ErrAgain error.
func (p *Poller[T]) Wait(timeout time.Duration) (T, error) {
	for {
		if p.wait {
			if p.fd == -1 {
				p.fd = p.drv.FD()
			}
			if p.fd >= 0 {
				fds := [...]unix.PollFd{{Fd: int32(p.fd), Events: unix.POLLIN}}
				dur := -1
				if timeout >= 0 {
					dur = int(timeout.Milliseconds())
				}
				unix.Poll(fds[:], dur)
			}
		}

		item, cont, err := p.drv.Poll()
		if errors.Is(err, ErrAgain) {
			p.wait = false
			time.Sleep(10 * time.Millisecond)
			continue
		}
		p.wait = !cont || err != nil
		return item, err
	}
}

func (p *Poller[T]) drain(ch chan<- T) error {
	for {
		item, cont, err := p.drv.Poll()
		if errors.Is(err, ErrAgain) {
			time.Sleep(10 * time.Millisecond)
			continue
		}
		if err != nil {
			log.Printf("uevent: poller stopped: %v", err)
			return err
		}
		ch <- item
		if !cont {
			return nil
		}
	}
}

// Stream continuously polls drv from a background goroutine, writing
// accepted items to ch until an unrecoverable error occurs.
func (p *Poller[T]) Stream(ch chan<- T) {
	go func() {
		if p.drain(ch) != nil {
			return
		}
		for {
			if p.fd == -1 {
				p.fd = p.drv.FD()
			}
			if p.fd >= 0 {
				fds := [...]unix.PollFd{{Fd: int32(p.fd), Events: unix.POLLIN}}
				unix.Poll(fds[:], -1)
			} else {
				time.Sleep(100 * time.Millisecond)
			}
			if p.drain(ch) != nil {
				return
			}
		}
	}()
}
