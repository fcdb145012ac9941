package posture

import (
	"errors"
	"fmt"
	"math"

	"github.com/zhouzirui/mock-interview/backend/internal/model/interview"
)

// NoseTipIndex is the landmark used as the head position reference.
const NoseTipIndex = 1

// Bounds is an open rectangle in normalized frame coordinates.
type Bounds struct {
	MinX, MaxX float64
	MinY, MaxY float64
}

// Contains reports whether p lies strictly inside b.
func (b Bounds) Contains(p interview.Point) bool {
	return p.X > b.MinX && p.X < b.MaxX && p.Y > b.MinY && p.Y < b.MaxY
}

// CenterBounds is the region the nose tip must fall in for a frame to count as centered.
var CenterBounds = Bounds{MinX: 0.4, MaxX: 0.6, MinY: 0.3, MaxY: 0.7}

var ErrMalformedLandmarks = errors.New("malformed landmark set")

// Classify turns one landmark set into a frame sample. An empty set is a no-face sample.
// A non-nil error means the set was unusable; the returned sample is then a no-face sample.
func Classify(set interview.LandmarkSet) (interview.FrameSample, error) {
	if len(set) == 0 {
		return interview.FrameSample{}, nil
	}
	if len(set) <= NoseTipIndex {
		return interview.FrameSample{}, fmt.Errorf("%w: %d points, need reference index %d", ErrMalformedLandmarks, len(set), NoseTipIndex)
	}

	nose := set[NoseTipIndex]
	if !finite(nose.X) || !finite(nose.Y) {
		return interview.FrameSample{}, fmt.Errorf("%w: non-finite reference point", ErrMalformedLandmarks)
	}

	return interview.FrameSample{HasFace: true, Centered: CenterBounds.Contains(nose)}, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Scorer folds frame samples into a ScoreState. It is not safe for concurrent use;
// the session loop owns it.
type Scorer struct {
	state interview.ScoreState
}

// NewScorer returns a scorer at the initial state.
func NewScorer() *Scorer {
	return &Scorer{state: interview.InitialScore()}
}

// Observe applies the decay-and-reset rule for one sample.
func (s *Scorer) Observe(sample interview.FrameSample) {
	if !sample.HasFace {
		return
	}

	if sample.Centered {
		s.state.PostureScore = interview.MaxPostureScore
		s.state.GoodFrames++
	} else if s.state.PostureScore > 0 {
		s.state.PostureScore--
	}
	s.state.TotalFrames++
}

// State returns the current counters.
func (s *Scorer) State() interview.ScoreState {
	return s.state
}

// Reset discards all accumulated counters.
func (s *Scorer) Reset() {
	s.state = interview.InitialScore()
}
