package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeenSetDedup(t *testing.T) {
	s := newSeenSet()

	assert.False(t, s.SeenThrows("a"))
	assert.True(t, s.SeenThrows("a"))

	assert.False(t, s.SeenDurable("b"))
	assert.True(t, s.SeenDurable("b"))
}

func TestSeenSetAdvanceRoundClearsThrows(t *testing.T) {
	s := newSeenSet()
	s.SeenThrows("a")

	s.AdvanceRound()

	assert.False(t, s.SeenThrows("a"), "throws key should be forgotten once the round advances")
}

func TestSeenSetAdvanceHeightExpiresOldDurableKeys(t *testing.T) {
	s := newSeenSet()
	s.SeenDurable("old")

	for i := 0; i < 5; i++ {
		s.AdvanceHeight(3)
	}
	s.SeenDurable("recent")

	assert.False(t, s.SeenDurable("old"), "durable key older than the retention window should have expired")
	assert.True(t, s.SeenDurable("recent"), "durable key within the retention window should still be remembered")
}

func TestSeenSetAdvanceHeightUnboundedRetention(t *testing.T) {
	s := newSeenSet()
	s.SeenDurable("forever")

	for i := 0; i < 1000; i++ {
		s.AdvanceHeight(0)
	}

	assert.True(t, s.SeenDurable("forever"), "retainBlocks == 0 should mean durable keys never expire")
}
