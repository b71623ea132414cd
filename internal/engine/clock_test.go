package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClock_StartsAtZero(t *testing.T) {
	c := NewClock()
	assert.Equal(t, int64(0), c.Current())
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())
	assert.Equal(t, int64(2), c.Current(), "Current must not advance the clock")
}

func TestClock_ResumesFromPersistedSeq(t *testing.T) {
	c := NewClockAt(41)
	assert.Equal(t, int64(42), c.Next())
}

func TestClock_SharedAcrossMachines(t *testing.T) {
	c := NewClock()
	const machines = 50
	const stepsPerMachine = 20

	var wg sync.WaitGroup
	seqs := make(chan int64, machines*stepsPerMachine)
	for i := 0; i < machines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < stepsPerMachine; j++ {
				seqs <- c.Next()
			}
		}()
	}
	wg.Wait()
	close(seqs)

	seen := make(map[int64]bool)
	for seq := range seqs {
		assert.False(t, seen[seq], "seq %d generated twice", seq)
		seen[seq] = true
	}
	assert.Len(t, seen, machines*stepsPerMachine)
}
