package posture

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/mock-interview/backend/internal/model/interview"
)

func faceAt(x, y float64) interview.LandmarkSet {
	return interview.LandmarkSet{{X: 0.1, Y: 0.1}, {X: x, Y: y}, {X: 0.9, Y: 0.9}}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name     string
		set      interview.LandmarkSet
		hasFace  bool
		centered bool
	}{
		{"empty set is no face", nil, false, false},
		{"center of frame", faceAt(0.5, 0.5), true, true},
		{"left edge is exclusive", faceAt(0.4, 0.5), true, false},
		{"right edge is exclusive", faceAt(0.6, 0.5), true, false},
		{"top edge is exclusive", faceAt(0.5, 0.3), true, false},
		{"bottom edge is exclusive", faceAt(0.5, 0.7), true, false},
		{"just inside corner", faceAt(0.41, 0.69), true, true},
		{"far off", faceAt(0.9, 0.1), true, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sample, err := Classify(tc.set)
			require.NoError(t, err)
			assert.Equal(t, tc.hasFace, sample.HasFace)
			assert.Equal(t, tc.centered, sample.Centered)
		})
	}
}

func TestClassifyMalformed(t *testing.T) {
	sample, err := Classify(interview.LandmarkSet{{X: 0.5, Y: 0.5}})
	require.ErrorIs(t, err, ErrMalformedLandmarks)
	assert.False(t, sample.HasFace)

	sample, err = Classify(faceAt(math.NaN(), 0.5))
	require.ErrorIs(t, err, ErrMalformedLandmarks)
	assert.False(t, sample.HasFace)
}

func TestScorerRules(t *testing.T) {
	s := NewScorer()
	require.Equal(t, interview.InitialScore(), s.State())

	off := interview.FrameSample{HasFace: true}
	on := interview.FrameSample{HasFace: true, Centered: true}
	none := interview.FrameSample{}

	s.Observe(off)
	s.Observe(off)
	assert.Equal(t, interview.ScoreState{PostureScore: 98, GoodFrames: 0, TotalFrames: 2}, s.State())

	s.Observe(none)
	assert.Equal(t, 2, s.State().TotalFrames, "no-face samples are not counted")

	s.Observe(on)
	assert.Equal(t, interview.ScoreState{PostureScore: 100, GoodFrames: 1, TotalFrames: 3}, s.State())

	s.Reset()
	assert.Equal(t, interview.InitialScore(), s.State())
}

func TestScorerNeverNegative(t *testing.T) {
	s := NewScorer()
	off := interview.FrameSample{HasFace: true}
	for i := 0; i < 150; i++ {
		s.Observe(off)
	}

	state := s.State()
	assert.Equal(t, 0, state.PostureScore)
	assert.Equal(t, 150, state.TotalFrames)
	assert.LessOrEqual(t, state.GoodFrames, state.TotalFrames)
}

func TestGuideFor(t *testing.T) {
	_, ok := GuideFor(false, false)
	assert.False(t, ok)

	g, ok := GuideFor(true, true)
	require.True(t, ok)
	assert.Equal(t, Guide{X: 100, Y: 50, Width: 440, Height: 380, Color: ColorCentered}, g)

	g, ok = GuideFor(true, false)
	require.True(t, ok)
	assert.Equal(t, ColorOffCenter, g.Color)
}
