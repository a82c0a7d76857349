// BSD 3-Clause License
//
// Copyright (c) 2024, Highlander Authors
// All rights reserved.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions are met:
//
// 1. Redistributions of source code must retain the above copyright notice, this
//    list of conditions and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright notice,
//    this list of conditions and the following disclaimer in the documentation
//    and/or other materials provided with the distribution.
//
// 3. Neither the name of the copyright holder nor the names of its
//    contributors may be used to endorse or promote products derived from
//    this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS"
// AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE
// IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE
// DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE LIABLE
// FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR CONSEQUENTIAL
// DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR
// SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS INTERRUPTION) HOWEVER
// CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN CONTRACT, STRICT LIABILITY,
// OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH DAMAGE.

// Package timer is a small heap-based one-shot scheduler, reimplementing
// the call-site contract of the teacher's referenced-but-unretrieved
// github.com/xtaci/bdls/timer.TimedSched (agent-tcp/agent.go:
// "agent.timedSched.Put(agent.update, time.Now().Add(20*time.Millisecond))").
// That package belongs to the teacher's own module, not a third-party
// dependency, so it is rebuilt here as an internal package rather than
// invented as a fake external import (see DESIGN.md).
package timer

import (
	"container/heap"
	"sync"
	"time"
)

// task is one scheduled callback.
type task struct {
	when time.Time
	fn   func()
	index int
}

type taskHeap []*task

func (h taskHeap) Len() int            { return len(h) }
func (h taskHeap) Less(i, j int) bool  { return h[i].when.Before(h[j].when) }
func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *taskHeap) Push(x interface{}) {
	t := x.(*task)
	t.index = len(*h)
	*h = append(*h, t)
}
func (h *taskHeap) Pop() interface{} {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}

// TimedSched runs a single dispatcher goroutine that fires callbacks no
// earlier than their requested time, in earliest-first order — the same
// self-rescheduling idiom the teacher drives its 20ms consensus updater
// with, generalized into a reusable min-heap scheduler.
type TimedSched struct {
	mu      sync.Mutex
	tasks   taskHeap
	wake    chan struct{}
	die     chan struct{}
	dieOnce sync.Once
}

// NewTimedSched starts a scheduler's dispatcher goroutine.
func NewTimedSched() *TimedSched {
	s := &TimedSched{
		wake: make(chan struct{}, 1),
		die:  make(chan struct{}),
	}
	go s.dispatch()
	return s
}

// Put schedules fn to run at or after when. fn runs on the dispatcher
// goroutine; callers that mutate shared state from fn are responsible for
// their own synchronization, exactly as the teacher's agent.update does
// with consensusMu.
func (s *TimedSched) Put(fn func(), when time.Time) {
	s.mu.Lock()
	heap.Push(&s.tasks, &task{when: when, fn: fn})
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *TimedSched) dispatch() {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		s.mu.Lock()
		var next time.Duration
		if len(s.tasks) == 0 {
			next = time.Hour
		} else {
			next = time.Until(s.tasks[0].when)
			if next < 0 {
				next = 0
			}
		}
		s.mu.Unlock()

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(next)

		select {
		case <-s.die:
			return
		case <-s.wake:
			continue
		case <-timer.C:
			s.runDue()
		}
	}
}

func (s *TimedSched) runDue() {
	now := time.Now()
	for {
		s.mu.Lock()
		if len(s.tasks) == 0 || s.tasks[0].when.After(now) {
			s.mu.Unlock()
			return
		}
		t := heap.Pop(&s.tasks).(*task)
		s.mu.Unlock()
		t.fn()
	}
}

// Close stops the dispatcher goroutine. Pending tasks are discarded.
func (s *TimedSched) Close() {
	s.dieOnce.Do(func() { close(s.die) })
}
