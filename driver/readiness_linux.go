//go:build linux
// +build linux

// File: driver/readiness_linux.go
// License: Apache-2.0
//
// Linux epoll(7) readiness queue with an eventfd wakeup channel.

package driver

import (
	"encoding/binary"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/hahmed/quicsilver/api"
)

// epollQueue implements Queue using epoll. Completions are kept in a
// sync.Map because the engine may watch and unwatch descriptors from
// inside a completion while Wait is iterating.
type epollQueue struct {
	epfd        int
	wakeFd      int
	completions sync.Map // int -> api.Completion
	events      []unix.EpollEvent
}

// newQueue creates the platform readiness queue.
func newQueue(maxEvents int) (Queue, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	wakeFd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		unix.Close(epfd)
		return nil, err
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakeFd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakeFd, &ev); err != nil {
		unix.Close(wakeFd)
		unix.Close(epfd)
		return nil, err
	}
	return &epollQueue{
		epfd:   epfd,
		wakeFd: wakeFd,
		events: make([]unix.EpollEvent, maxEvents),
	}, nil
}

// Watch adds fd to the interest set with a read-readiness completion.
func (q *epollQueue) Watch(fd int, c api.Completion) error {
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
	if err := unix.EpollCtl(q.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return err
	}
	q.completions.Store(fd, c)
	return nil
}

// Unwatch removes fd from the interest set.
func (q *epollQueue) Unwatch(fd int) error {
	err := unix.EpollCtl(q.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	q.completions.Delete(fd)
	return err
}

// Wait blocks up to budget and fires the completion of every ready
// descriptor on the calling thread.
func (q *epollQueue) Wait(budget time.Duration) (int, error) {
	ms := 0
	if budget > 0 {
		ms = int(budget / time.Millisecond)
		if ms == 0 {
			ms = 1
		}
	}

	n, err := unix.EpollWait(q.epfd, q.events, ms)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}

	fired := 0
	for i := 0; i < n; i++ {
		fd := int(q.events[i].Fd)
		if fd == q.wakeFd {
			q.drainWakeup()
			continue
		}
		if c, ok := q.completions.Load(fd); ok {
			c.(api.Completion)()
			fired++
		}
	}
	return fired, nil
}

// Wakeup increments the eventfd so a blocked Wait returns early.
func (q *epollQueue) Wakeup() error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 1)
	_, err := unix.Write(q.wakeFd, buf[:])
	if err == unix.EAGAIN {
		// Counter saturated: a wakeup is already pending.
		return nil
	}
	return err
}

// Close releases the eventfd and the epoll instance.
func (q *epollQueue) Close() error {
	err := unix.Close(q.wakeFd)
	if cerr := unix.Close(q.epfd); err == nil {
		err = cerr
	}
	return err
}

func (q *epollQueue) drainWakeup() {
	var buf [8]byte
	for {
		if _, err := unix.Read(q.wakeFd, buf[:]); err != nil {
			return
		}
	}
}
