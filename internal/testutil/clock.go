// Package testutil holds fixtures and deterministic stand-ins shared by the
// package tests: a fixture database built through the real ingestion path,
// a stepping clock, and a scripted oracle.
package testutil

import (
	"sync"
	"time"
)

// StepClock is a deterministic clock for tests.
//
// Each call to Now advances the clock by Step and returns the new time, so
// the elapsed time between any two consecutive readings is exactly Step.
// This makes measured execution times reproducible in golden output.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type StepClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// NewStepClock creates a clock starting at start that advances by step.
func NewStepClock(start time.Time, step time.Duration) *StepClock {
	return &StepClock{now: start, step: step}
}

// Now advances the clock by one step and returns the new reading.
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.step)
	return c.now
}

// Peek returns the current reading without advancing.
func (c *StepClock) Peek() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// SetStep changes the step for subsequent readings.
func (c *StepClock) SetStep(step time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.step = step
}
