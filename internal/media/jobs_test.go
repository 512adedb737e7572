// Roomcast - Synchronized Multi-Client Media Playback Coordinator
// Copyright 2026 Roomcast contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

package media

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roomcast/roomcast/internal/logging"
	"github.com/roomcast/roomcast/internal/store"
)

func init() {
	logging.Init(logging.Config{Level: "disabled", Output: io.Discard})
}

// fakeRunner lets a test control when a job finishes and what it returns.
type fakeRunner struct {
	mu      sync.Mutex
	started chan string
	release chan struct{}
	result  *Result
	err     error
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		started: make(chan string, 16),
		release: make(chan struct{}),
	}
}

func (f *fakeRunner) Run(ctx context.Context, jobType JobType, filename string, opts Options, progress func(int)) (*Result, error) {
	f.started <- filename
	progress(50)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-f.release:
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result, f.err
}

func waitForStatus(t *testing.T, q *Queue, id string, want JobStatus) Job {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if j, ok := q.Job(id); ok && j.Status == want {
			return j
		}
		time.Sleep(5 * time.Millisecond)
	}
	j, _ := q.Job(id)
	t.Fatalf("job %s never reached %s, last status %s", id, want, j.Status)
	return Job{}
}

func TestJobLifecycleCompleted(t *testing.T) {
	runner := newFakeRunner()
	q := NewQueue(runner)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = q.Serve(ctx) }()

	j, err := q.Enqueue(JobRemux, "movie.mkv", Options{Container: "mp4"})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, j.Status)

	<-runner.started
	running := waitForStatus(t, q, j.ID, StatusRunning)
	assert.Equal(t, 50, running.Progress)

	close(runner.release)
	done := waitForStatus(t, q, j.ID, StatusCompleted)
	assert.Equal(t, 100, done.Progress)
	require.NotNil(t, done.Duration)
}

func TestJobFailureRecordsError(t *testing.T) {
	runner := newFakeRunner()
	runner.err = errors.New("no such stream")
	q := NewQueue(runner)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = q.Serve(ctx) }()

	j, err := q.Enqueue(JobExtract, "movie.mkv", Options{})
	require.NoError(t, err)
	<-runner.started
	close(runner.release)

	failed := waitForStatus(t, q, j.ID, StatusFailed)
	assert.Equal(t, "no such stream", failed.Error)
}

func TestCancelPendingJobNeverRuns(t *testing.T) {
	runner := newFakeRunner()
	q := NewQueue(runner)

	j, err := q.Enqueue(JobRemux, "movie.mkv", Options{})
	require.NoError(t, err)
	require.True(t, q.Cancel(j.ID))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = q.Serve(ctx) }()

	select {
	case <-runner.started:
		t.Fatal("cancelled job must not start")
	case <-time.After(100 * time.Millisecond):
	}
	got, _ := q.Job(j.ID)
	assert.Equal(t, StatusCancelled, got.Status)
}

func TestCancelRunningJobKillsIt(t *testing.T) {
	runner := newFakeRunner()
	q := NewQueue(runner)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = q.Serve(ctx) }()

	j, err := q.Enqueue(JobReencode, "movie.mkv", Options{})
	require.NoError(t, err)
	<-runner.started

	require.True(t, q.Cancel(j.ID))
	got := waitForStatus(t, q, j.ID, StatusCancelled)
	assert.Equal(t, StatusCancelled, got.Status)

	// Cancelling a finished job is refused.
	assert.False(t, q.Cancel(j.ID))
}

func TestCompletionHookReceivesTracks(t *testing.T) {
	runner := newFakeRunner()
	runner.result = &Result{Tracks: []store.ExternalTrack{{Type: "subtitle", Path: "x.vtt", URL: "/x"}}}
	q := NewQueue(runner)

	hooked := make(chan string, 1)
	q.SetTrackHook(func(filename string, tracks []store.ExternalTrack) {
		require.Len(t, tracks, 1)
		hooked <- filename
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = q.Serve(ctx) }()

	_, err := q.Enqueue(JobExtract, "movie.mkv", Options{TrackType: "subtitle"})
	require.NoError(t, err)
	<-runner.started
	close(runner.release)

	select {
	case filename := <-hooked:
		assert.Equal(t, "movie.mkv", filename)
	case <-time.After(2 * time.Second):
		t.Fatal("track hook never ran")
	}
}

func TestJobsSnapshotKeepsSubmissionOrder(t *testing.T) {
	q := NewQueue(newFakeRunner())
	a, err := q.Enqueue(JobRemux, "a.mkv", Options{})
	require.NoError(t, err)
	b, err := q.Enqueue(JobExtract, "b.mkv", Options{})
	require.NoError(t, err)

	jobs := q.Jobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, a.ID, jobs[0].ID)
	assert.Equal(t, b.ID, jobs[1].ID)
}

func TestCheckToolsPassword(t *testing.T) {
	assert.True(t, CheckToolsPassword("hunter2", "hunter2"))
	assert.False(t, CheckToolsPassword("hunter2", "wrong"))
	assert.False(t, CheckToolsPassword("", ""), "empty configured password disables the tools")
}
