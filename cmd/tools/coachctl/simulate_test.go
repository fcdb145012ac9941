package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/mock-interview/backend/internal/model/interview"
	"github.com/zhouzirui/mock-interview/backend/internal/service/landmark"
	"github.com/zhouzirui/mock-interview/backend/internal/service/session"
)

type stubBackend struct {
	summary    interview.SummaryResult
	analyzeErr error
}

func (stubBackend) StartSession(context.Context, interview.Intake) ([]string, error) {
	return []string{"Q1", "Q2"}, nil
}

func (b stubBackend) Analyze(context.Context, interview.Aggregate) (interview.SummaryResult, error) {
	return b.summary, b.analyzeErr
}

func newSimulation(t *testing.T, backend session.Backend) (*session.Controller, *landmark.StreamSource) {
	t.Helper()

	orig := simulateOpts
	simulateOpts.frames = 3
	simulateOpts.centered = 1
	simulateOpts.interval = time.Millisecond
	t.Cleanup(func() { simulateOpts = orig })

	feed := landmark.NewStreamSource(8)
	ctrl := session.NewController(session.Config{
		ID:      "simulate-test",
		Backend: backend,
		Source:  feed,
		Voice:   logSpeaker{},
		Locale:  "en-US",
	})
	t.Cleanup(ctrl.Close)
	return ctrl, feed
}

func TestSimulateReachesSummaryWithoutEvents(t *testing.T) {
	want := interview.SummaryResult{FocusScore: 80, PostureScore: 90, Feedback: "steady"}
	ctrl, feed := newSimulation(t, stubBackend{summary: want})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// nil 事件通道：只能依靠快照推进
	got, err := simulate(ctx, ctrl, feed, nil, "Software Engineer")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSimulateWithEvents(t *testing.T) {
	want := interview.SummaryResult{FocusScore: 70, Feedback: "good"}
	ctrl, feed := newSimulation(t, stubBackend{summary: want})

	events, unsubscribe := ctrl.Subscribe()
	defer unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got, err := simulate(ctx, ctrl, feed, events, "Software Engineer")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSimulateReportsAnalysisFailure(t *testing.T) {
	ctrl, feed := newSimulation(t, stubBackend{analyzeErr: errors.New("analysis down")})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := simulate(ctx, ctrl, feed, nil, "Software Engineer")
	require.ErrorIs(t, err, errSessionFailed)
	assert.Contains(t, err.Error(), "analysis down")
}
