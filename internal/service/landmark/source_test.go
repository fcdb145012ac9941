package landmark

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/mock-interview/backend/internal/model/interview"
)

func frameWithX(x float64) Frame {
	return Frame{Landmarks: interview.LandmarkSet{{}, {X: x, Y: 0.5}}}
}

func TestPushBeforeStartIsDiscarded(t *testing.T) {
	s := NewStreamSource(2)
	assert.False(t, s.Push(frameWithX(0.5)))
	assert.False(t, s.Running())
}

func TestPushDropsNewestWhenFull(t *testing.T) {
	s := NewStreamSource(2)
	ch, err := s.Start(context.Background())
	require.NoError(t, err)

	assert.True(t, s.Push(frameWithX(0.1)))
	assert.True(t, s.Push(frameWithX(0.2)))
	assert.False(t, s.Push(frameWithX(0.3)))
	assert.Equal(t, uint64(1), s.Dropped())

	first := <-ch
	second := <-ch
	assert.Equal(t, 0.1, first.Landmarks[1].X)
	assert.Equal(t, 0.2, second.Landmarks[1].X)

	s.Stop()
	_, open := <-ch
	assert.False(t, open)
}

func TestStopIsIdempotentAndRestartable(t *testing.T) {
	s := NewStreamSource(1)
	_, err := s.Start(context.Background())
	require.NoError(t, err)

	_, err = s.Start(context.Background())
	require.ErrorIs(t, err, ErrAlreadyStarted)

	s.Stop()
	s.Stop()
	assert.False(t, s.Push(frameWithX(0.5)))

	ch, err := s.Start(context.Background())
	require.NoError(t, err)
	require.True(t, s.Push(frameWithX(0.5)))
	assert.Len(t, ch, 1)
	s.Stop()
}

func TestContextCancelStopsSource(t *testing.T) {
	s := NewStreamSource(1)
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := s.Start(ctx)
	require.NoError(t, err)

	cancel()

	require.Eventually(t, func() bool { return !s.Running() }, time.Second, 5*time.Millisecond)
	_, open := <-ch
	assert.False(t, open)
}

func TestUnavailable(t *testing.T) {
	s := NewStreamSource(1)
	s.MarkUnavailable("permission denied")

	_, err := s.Start(context.Background())
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "permission denied")

	s.MarkUnavailable("")
	_, err = s.Start(context.Background())
	require.NoError(t, err)
	s.Stop()
}
