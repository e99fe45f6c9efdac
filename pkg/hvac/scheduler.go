// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 HWHardsoft

package hvac

import (
	"context"
	"fmt"
	"time"
)

// TaskFunc is one unit of scheduled work.
type TaskFunc func(ctx context.Context) error

// Task runs whenever tick % Period == Offset.
type Task struct {
	Name   string
	Period uint64
	Offset uint64
	Run    TaskFunc
}

// due reports whether the task fires on tick.
func (t Task) due(tick uint64) bool {
	return tick%t.Period == t.Offset
}

// Scheduler is a cooperative round-robin loop over a fixed task table.
// Tasks run in table order on the scheduler goroutine; nothing runs
// concurrently with them.
type Scheduler struct {
	tasks []Task
	tick  uint64
	pace  time.Duration
	wait  WaitFunc

	// OnError receives task failures. The loop itself never stops on them.
	OnError func(task string, err error)
}

// NewScheduler creates a scheduler that pauses pace between iterations.
func NewScheduler(pace time.Duration, wait WaitFunc) *Scheduler {
	if wait == nil {
		wait = Sleep
	}
	return &Scheduler{pace: pace, wait: wait}
}

// Add appends a task to the table.
func (s *Scheduler) Add(t Task) error {
	if t.Period == 0 {
		return fmt.Errorf("task %q: period must be positive", t.Name)
	}
	if t.Offset >= t.Period {
		return fmt.Errorf("task %q: offset %d outside period %d", t.Name, t.Offset, t.Period)
	}
	if t.Run == nil {
		return fmt.Errorf("task %q: no run function", t.Name)
	}
	s.tasks = append(s.tasks, t)
	return nil
}

// Tasks returns the task table.
func (s *Scheduler) Tasks() []Task {
	return s.tasks
}

// Tick returns the number of completed iterations.
func (s *Scheduler) Tick() uint64 {
	return s.tick
}

// Step runs every task due on the current tick and advances the tick.
// It returns the names of the tasks that ran.
func (s *Scheduler) Step(ctx context.Context) []string {
	var ran []string
	for _, t := range s.tasks {
		if !t.due(s.tick) {
			continue
		}
		ran = append(ran, t.Name)
		if err := t.Run(ctx); err != nil && s.OnError != nil {
			s.OnError(t.Name, err)
		}
	}
	s.tick++
	return ran
}

// Run steps the scheduler until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.Step(ctx)
		if err := s.wait(ctx, s.pace); err != nil {
			return err
		}
	}
}
