package session

// Sequencer walks a fixed question list forward only.
type Sequencer struct {
	questions []string
	index     int
}

// NewSequencer copies qs; callers guarantee it is non-empty.
func NewSequencer(qs []string) *Sequencer {
	return &Sequencer{questions: append([]string(nil), qs...)}
}

func (s *Sequencer) Index() int { return s.index }

// Current returns the question being asked.
func (s *Sequencer) Current() string {
	return s.questions[s.index]
}

// Advance moves to the next question. At the last question it reports
// done and leaves the index where it is.
func (s *Sequencer) Advance() (next string, done bool) {
	if s.index >= len(s.questions)-1 {
		return "", true
	}
	s.index++
	return s.questions[s.index], false
}
