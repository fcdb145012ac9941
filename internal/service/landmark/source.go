package landmark

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/zhouzirui/mock-interview/backend/internal/metrics"
	"github.com/zhouzirui/mock-interview/backend/internal/model/interview"
)

// DefaultBufferSize is used when a non-positive buffer size is configured.
const DefaultBufferSize = 32

var (
	ErrUnavailable    = errors.New("landmark source unavailable")
	ErrAlreadyStarted = errors.New("landmark source already started")
)

// Frame is one detection result. Empty Landmarks means no face was found;
// a non-nil Err marks a frame the detector could not produce cleanly.
type Frame struct {
	Landmarks interview.LandmarkSet
	Err       error
}

// Source produces frames between Start and Stop. Arrival timing is outside
// the consumer's control.
type Source interface {
	Start(ctx context.Context) (<-chan Frame, error)
	Stop()
}

// StreamSource is fed by a client connection. Push never blocks; once the
// buffer is full the newest frame is discarded.
type StreamSource struct {
	size int

	mu          sync.Mutex
	frames      chan Frame
	unavailable string
	dropped     uint64
	stopHook    func() bool
}

// NewStreamSource creates an idle source with a buffer of size frames.
func NewStreamSource(size int) *StreamSource {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &StreamSource{size: size}
}

// Start opens a fresh frame channel. The channel is closed by Stop or when ctx ends.
func (s *StreamSource) Start(ctx context.Context) (<-chan Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.unavailable != "" {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, s.unavailable)
	}
	if s.frames != nil {
		return nil, ErrAlreadyStarted
	}

	frames := make(chan Frame, s.size)
	s.frames = frames
	s.stopHook = context.AfterFunc(ctx, func() { s.stop(frames) })
	return frames, nil
}

// Stop closes the current channel. Safe to call repeatedly.
func (s *StreamSource) Stop() {
	s.stop(nil)
}

// stop closes the running channel; a non-nil only restricts it to that run
// so a late context callback cannot end a later Start.
func (s *StreamSource) stop(only chan Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frames == nil || (only != nil && s.frames != only) {
		return
	}
	close(s.frames)
	s.frames = nil
	if s.stopHook != nil {
		s.stopHook()
		s.stopHook = nil
	}
}

// Push delivers a frame. It reports false when the frame was discarded,
// either because the source is stopped or because the buffer is full.
func (s *StreamSource) Push(f Frame) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frames == nil {
		return false
	}
	select {
	case s.frames <- f:
		return true
	default:
		s.dropped++
		metrics.RecordFrameDropped()
		return false
	}
}

// MarkUnavailable records that the client has no usable camera. Later calls
// to Start fail with ErrUnavailable; an empty reason clears the mark.
func (s *StreamSource) MarkUnavailable(reason string) {
	s.mu.Lock()
	s.unavailable = reason
	s.mu.Unlock()
}

// Running reports whether the source is between Start and Stop.
func (s *StreamSource) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames != nil
}

// Dropped returns how many frames were discarded for lack of buffer space.
func (s *StreamSource) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}
