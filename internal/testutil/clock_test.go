package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func TestStepClock_Advances(t *testing.T) {
	clock := NewStepClock(epoch, 250*time.Millisecond)

	first := clock.Now()
	second := clock.Now()

	assert.Equal(t, epoch.Add(250*time.Millisecond), first)
	assert.Equal(t, 250*time.Millisecond, second.Sub(first))
	assert.Equal(t, second, clock.Peek())
}

func TestStepClock_SetStep(t *testing.T) {
	clock := NewStepClock(epoch, time.Second)
	clock.Now()
	clock.SetStep(2 * time.Second)
	assert.Equal(t, epoch.Add(3*time.Second), clock.Now())
}

func TestStepClock_ThreadSafe(t *testing.T) {
	clock := NewStepClock(epoch, time.Millisecond)
	const goroutines = 50
	const calls = 20

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < calls; j++ {
				clock.Now()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, epoch.Add(goroutines*calls*time.Millisecond), clock.Peek())
}
