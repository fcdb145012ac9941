package session

import (
	"sync"
	"time"

	"github.com/zhouzirui/mock-interview/backend/internal/analysis/posture"
	"github.com/zhouzirui/mock-interview/backend/internal/model/interview"
)

// EventType names what changed in a session.
type EventType string

const (
	EventPhase  EventType = "phase"
	EventScore  EventType = "score"
	EventSpeak  EventType = "speak"
	EventStop   EventType = "stop"
	EventAnswer EventType = "answer"
	EventError  EventType = "error"
	EventCamera EventType = "camera"
)

// Event is one observable output of a session.
type Event struct {
	Type      EventType          `json:"type"`
	SessionID string             `json:"sessionId"`
	Session   *interview.Session `json:"session,omitempty"`
	Score     *ScoreUpdate       `json:"score,omitempty"`
	Speech    *SpeechPayload     `json:"speech,omitempty"`
	Answer    *interview.Answer  `json:"answer,omitempty"`
	Message   string             `json:"message,omitempty"`
	At        time.Time          `json:"at"`
}

// ScoreUpdate is published after every scored frame.
type ScoreUpdate struct {
	interview.ScoreState
	HasFace  bool           `json:"hasFace"`
	Centered bool           `json:"centered"`
	Guide    *posture.Guide `json:"guide,omitempty"`
}

// SpeechPayload carries an utterance to the client. Audio is empty for
// text-only delivery, in which case the client voices Text itself.
type SpeechPayload struct {
	Text       string `json:"text"`
	Locale     string `json:"locale"`
	Voice      string `json:"voice,omitempty"`
	Format     string `json:"format,omitempty"`
	Audio      []byte `json:"audio,omitempty"`
	DurationMs int64  `json:"durationMs,omitempty"`
}

// DefaultSubscriberBuffer is the per-subscriber queue length.
const DefaultSubscriberBuffer = 64

// Bus fans events out to subscribers. Publish never blocks: a subscriber
// whose queue is full misses the event, except phase and error events,
// which evict the oldest queued event instead.
type Bus struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	next   int
	closed bool
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe registers a listener. The returned func unsubscribes and closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.next
	b.next++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
}

func (b *Bus) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
			continue
		default:
		}
		if !e.critical() {
			continue
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- e:
		default:
		}
	}
}

// critical events carry lifecycle state a subscriber cannot rebuild from later events.
func (e Event) critical() bool {
	return e.Type == EventPhase || e.Type == EventError
}

// Close ends every subscription.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
