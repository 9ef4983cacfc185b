// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package tasks tracks long-running user operations such as scans and
// reprocessing so only one of each kind runs at a time.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/linkarr/internal/models"
)

var (
	ErrTaskRunning  = errors.New("task already running")
	ErrTaskNotFound = errors.New("task not found")
)

const (
	IDFullScan         = "full_scan"
	IDIncrementalScan  = "incremental_scan"
	IDReprocessUnknown = "reprocess_unknown"
)

// ReprocessID names the task that reprocesses a single source path.
func ReprocessID(path string) string {
	return "reprocess:" + path
}

type State string

const (
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

type Task struct {
	ID         string     `json:"id"`
	State      State      `json:"state"`
	Progress   int        `json:"progress"`
	Total      int        `json:"total"`
	Message    string     `json:"message"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

// OperationLogger records failed tasks in the operation log.
type OperationLogger interface {
	Add(ctx context.Context, action models.ActionKind, target, details string) error
}

// ProgressFunc reports a percentage and status line for the running task.
type ProgressFunc func(pct int, msg string)

type Registry struct {
	logs OperationLogger

	mu    sync.Mutex
	tasks map[string]*Task
}

func NewRegistry(logs OperationLogger) *Registry {
	return &Registry{
		logs:  logs,
		tasks: make(map[string]*Task),
	}
}

func (r *Registry) Start(id string, total int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.tasks[id]; ok && t.State == StateRunning {
		return fmt.Errorf("%s: %w", id, ErrTaskRunning)
	}
	r.tasks[id] = &Task{
		ID:        id,
		State:     StateRunning,
		Total:     total,
		StartedAt: time.Now(),
	}
	return nil
}

func (r *Registry) Update(id string, pct int, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok || t.State != StateRunning {
		return
	}
	t.Progress = min(max(pct, 0), 100)
	t.Message = msg
}

func (r *Registry) Complete(id, msg string) {
	r.finish(id, StateCompleted, 100, msg)
}

func (r *Registry) Fail(id, msg string) {
	r.finish(id, StateFailed, -1, msg)
}

func (r *Registry) finish(id string, state State, pct int, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		return
	}
	now := time.Now()
	t.State = state
	t.Message = msg
	t.FinishedAt = &now
	if pct >= 0 {
		t.Progress = pct
	}
}

// Get returns a copy of the task.
func (r *Registry) Get(id string) (Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		return Task{}, fmt.Errorf("%s: %w", id, ErrTaskNotFound)
	}
	return *t, nil
}

// All returns copies of every known task ordered by start time.
func (r *Registry) All() []Task {
	r.mu.Lock()
	out := make([]Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		out = append(out, *t)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// Go starts the task and runs fn on its own goroutine. The returned channel
// closes once the task has completed or failed.
func (r *Registry) Go(ctx context.Context, id string, fn func(ctx context.Context, progress ProgressFunc) (string, error)) (<-chan struct{}, error) {
	if err := r.Start(id, 100); err != nil {
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)

		msg, err := r.run(ctx, id, fn)
		if err != nil {
			log.Error().Err(err).Str("task", id).Msg("tasks: task failed")
			r.Fail(id, err.Error())
			if r.logs != nil {
				if logErr := r.logs.Add(context.WithoutCancel(ctx), models.ActionError, id, err.Error()); logErr != nil {
					log.Error().Err(logErr).Str("task", id).Msg("tasks: failed to write operation log")
				}
			}
			return
		}
		log.Debug().Str("task", id).Msg("tasks: task completed")
		r.Complete(id, msg)
	}()
	return done, nil
}

func (r *Registry) run(ctx context.Context, id string, fn func(ctx context.Context, progress ProgressFunc) (string, error)) (msg string, err error) {
	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic", p).Bytes("stack", debug.Stack()).Str("task", id).Msg("tasks: recovered panic")
			err = fmt.Errorf("panic: %v", p)
		}
	}()

	return fn(ctx, func(pct int, msg string) {
		r.Update(id, pct, msg)
	})
}
