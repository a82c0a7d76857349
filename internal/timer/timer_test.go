package timer

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimedSchedFiresInOrder(t *testing.T) {
	s := NewTimedSched()
	defer s.Close()

	var order []int
	done := make(chan struct{})

	s.Put(func() { order = append(order, 2) }, time.Now().Add(20*time.Millisecond))
	s.Put(func() { order = append(order, 1) }, time.Now().Add(5*time.Millisecond))
	s.Put(func() {
		order = append(order, 3)
		close(done)
	}, time.Now().Add(40*time.Millisecond))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for scheduled tasks")
	}

	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestTimedSchedRescheduling(t *testing.T) {
	s := NewTimedSched()
	defer s.Close()

	var count int32
	var reschedule func()
	reschedule = func() {
		if atomic.AddInt32(&count, 1) < 5 {
			s.Put(reschedule, time.Now().Add(time.Millisecond))
		}
	}
	s.Put(reschedule, time.Now())

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&count) == 5 }, time.Second, time.Millisecond)
}
