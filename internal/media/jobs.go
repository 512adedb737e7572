// Roomcast - Synchronized Multi-Client Media Playback Coordinator
// Copyright 2026 Roomcast contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

package media

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roomcast/roomcast/internal/logging"
	"github.com/roomcast/roomcast/internal/metrics"
	"github.com/roomcast/roomcast/internal/store"
)

// Job types.
type JobType string

const (
	JobRemux    JobType = "remux"
	JobReencode JobType = "reencode"
	JobExtract  JobType = "extract"
)

// Job statuses.
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusCancelled JobStatus = "cancelled"
)

// Options tunes a job.
type Options struct {
	Container string `json:"container,omitempty"` // remux target, e.g. "mp4"
	Codec     string `json:"codec,omitempty"`     // re-encode video codec
	Bitrate   string `json:"bitrate,omitempty"`   // re-encode target bitrate
	Scale     int    `json:"scale,omitempty"`     // re-encode target height, 0 keeps
	TrackType string `json:"trackType,omitempty"` // extract: "audio" or "subtitle"
}

// Job is one queued ffmpeg operation.
type Job struct {
	ID        string    `json:"id"`
	Type      JobType   `json:"type"`
	Filename  string    `json:"filename"`
	Status    JobStatus `json:"status"`
	Progress  int       `json:"progress"`
	StartTime time.Time `json:"startTime"`
	Duration  *float64  `json:"duration,omitempty"` // seconds, set on completion
	Error     string    `json:"error,omitempty"`

	opts   Options
	cancel context.CancelFunc
}

// Result is what a completed job produced.
type Result struct {
	OutputPath string
	Tracks     []store.ExternalTrack
}

// Runner executes one job. progress reports 0-100.
type Runner interface {
	Run(ctx context.Context, jobType JobType, filename string, opts Options, progress func(int)) (*Result, error)
}

// ErrQueueFull is returned when the pending buffer is exhausted.
var ErrQueueFull = errors.New("job queue full")

const pendingBuffer = 32

// Queue runs ffmpeg jobs one at a time off the sync hot path. Jobs move
// pending -> running -> completed, failed or cancelled.
type Queue struct {
	runner Runner

	mu      sync.Mutex
	jobs    map[string]*Job
	order   []string
	pending chan *Job

	onTracks func(filename string, tracks []store.ExternalTrack)
}

// NewQueue creates an idle queue; Serve starts the worker.
func NewQueue(runner Runner) *Queue {
	return &Queue{
		runner:  runner,
		jobs:    make(map[string]*Job),
		pending: make(chan *Job, pendingBuffer),
	}
}

// SetTrackHook installs the completion hook run when a job produced sidecar
// tracks. The hook never runs under a room lock.
func (q *Queue) SetTrackHook(fn func(filename string, tracks []store.ExternalTrack)) {
	q.onTracks = fn
}

// Enqueue queues one job.
func (q *Queue) Enqueue(jobType JobType, filename string, opts Options) (Job, error) {
	j := &Job{
		ID:        uuid.NewString(),
		Type:      jobType,
		Filename:  filename,
		Status:    StatusPending,
		StartTime: time.Now().UTC(),
		opts:      opts,
	}

	q.mu.Lock()
	q.jobs[j.ID] = j
	q.order = append(q.order, j.ID)
	q.mu.Unlock()

	select {
	case q.pending <- j:
	default:
		q.mu.Lock()
		j.Status = StatusFailed
		j.Error = ErrQueueFull.Error()
		q.mu.Unlock()
		return *j, ErrQueueFull
	}

	logging.Info().
		Str("job", j.ID).
		Str("type", string(jobType)).
		Str("file", filename).
		Msg("job queued")
	return *j, nil
}

// Cancel marks a pending or running job cancelled. Running jobs get their
// subprocess killed through context cancellation; partial outputs may
// remain on disk.
func (q *Queue) Cancel(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	j, ok := q.jobs[id]
	if !ok {
		return false
	}
	switch j.Status {
	case StatusPending:
		j.Status = StatusCancelled
		return true
	case StatusRunning:
		j.Status = StatusCancelled
		if j.cancel != nil {
			j.cancel()
		}
		return true
	}
	return false
}

// Job returns a snapshot of one job.
func (q *Queue) Job(id string) (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	j, ok := q.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *j, true
}

// Jobs returns snapshots of every job in submission order.
func (q *Queue) Jobs() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Job, 0, len(q.order))
	for _, id := range q.order {
		out = append(out, *q.jobs[id])
	}
	return out
}

// Serve implements suture.Service: the single job worker.
func (q *Queue) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case j := <-q.pending:
			q.run(ctx, j)
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (q *Queue) String() string { return "media-jobs" }

func (q *Queue) run(ctx context.Context, j *Job) {
	q.mu.Lock()
	if j.Status == StatusCancelled {
		q.mu.Unlock()
		return
	}
	jobCtx, cancel := context.WithCancel(ctx)
	j.Status = StatusRunning
	j.StartTime = time.Now().UTC()
	j.cancel = cancel
	jobType, filename, opts := j.Type, j.Filename, j.opts
	q.mu.Unlock()
	defer cancel()

	progress := func(p int) {
		q.mu.Lock()
		if j.Status == StatusRunning && p >= j.Progress && p <= 100 {
			j.Progress = p
		}
		q.mu.Unlock()
	}

	result, err := q.runner.Run(jobCtx, jobType, filename, opts, progress)
	elapsed := time.Since(j.StartTime).Seconds()

	q.mu.Lock()
	j.Duration = &elapsed
	switch {
	case j.Status == StatusCancelled:
		// Cancel won the race; leave the status alone.
	case err != nil:
		j.Status = StatusFailed
		j.Error = err.Error()
	default:
		j.Status = StatusCompleted
		j.Progress = 100
	}
	status := j.Status
	q.mu.Unlock()
	metrics.MediaJobs.WithLabelValues(string(status)).Inc()

	logging.Info().
		Str("job", j.ID).
		Str("status", string(status)).
		Float64("elapsed", elapsed).
		Msg("job finished")

	if status == StatusCompleted && result != nil && len(result.Tracks) > 0 && q.onTracks != nil {
		q.onTracks(filename, result.Tracks)
	}
}
