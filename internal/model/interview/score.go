package interview

// MaxPostureScore is the score a centered frame restores.
const MaxPostureScore = 100

// FrameSample is the classification of one landmark evaluation. It is never stored.
type FrameSample struct {
	HasFace  bool `json:"hasFace"`
	Centered bool `json:"centered"`
}

// ScoreState accumulates posture results for the lifetime of an active session.
// GoodFrames never exceeds TotalFrames.
type ScoreState struct {
	PostureScore int `json:"postureScore"`
	GoodFrames   int `json:"goodFrames"`
	TotalFrames  int `json:"totalFrames"`
}

// InitialScore is the state every session starts from.
func InitialScore() ScoreState {
	return ScoreState{PostureScore: MaxPostureScore}
}

// Aggregate packages the counters for the analysis request.
func (s ScoreState) Aggregate() Aggregate {
	return Aggregate{
		AverageScore:     s.PostureScore,
		GoodPostureCount: s.GoodFrames,
		Frames:           s.TotalFrames,
	}
}

// Point is one normalized facial landmark; X and Y are in [0,1] of the frame.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// LandmarkSet is the landmark list for one detected face. An empty set means no face.
type LandmarkSet []Point
