package session

import (
	"context"
	"time"

	"github.com/zhouzirui/mock-interview/backend/internal/model/interview"
	"github.com/zhouzirui/mock-interview/backend/internal/service/voice"
)

// BusPlayer plays utterances by publishing them to the session's
// subscribers and holding the voice slot for the speaking time.
type BusPlayer struct {
	bus       *Bus
	sessionID string
}

func NewBusPlayer(bus *Bus, sessionID string) *BusPlayer {
	return &BusPlayer{bus: bus, sessionID: sessionID}
}

func (p *BusPlayer) Play(ctx context.Context, u interview.Utterance, audio *voice.Audio) error {
	payload := &SpeechPayload{Text: u.Text, Locale: u.Locale}
	wait := voice.EstimateDuration(u.Text)
	if audio != nil {
		payload.Audio = audio.Data
		payload.Format = audio.Format
		payload.Voice = audio.Voice
		payload.DurationMs = audio.Duration.Milliseconds()
		if audio.Duration > 0 {
			wait = audio.Duration
		}
	}
	p.bus.Publish(Event{Type: EventSpeak, SessionID: p.sessionID, Speech: payload})

	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		p.bus.Publish(Event{Type: EventStop, SessionID: p.sessionID, Message: u.Text})
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
