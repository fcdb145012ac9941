package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/mock-interview/backend/internal/model/interview"
	"github.com/zhouzirui/mock-interview/backend/internal/service/capture"
	"github.com/zhouzirui/mock-interview/backend/internal/service/landmark"
	"github.com/zhouzirui/mock-interview/backend/internal/service/voice"
)

var ErrSessionNotFound = errors.New("session not found")

// ManagerConfig holds what every new session is built from.
type ManagerConfig struct {
	Backend        Backend
	Synth          voice.Synthesizer
	Catalog        *voice.Catalog
	PreferredVoice string
	Transcriber    capture.Transcriber
	Locale         string
	FrameBuffer    int
	RequestTimeout time.Duration
}

// Handle groups a controller with the inputs a client connection feeds.
type Handle struct {
	Controller *Controller
	Feed       *landmark.StreamSource
	Capture    *capture.Capture
	voice      *voice.Coordinator
}

// InputStatus describes the live inputs attached to a session.
type InputStatus struct {
	CameraRunning bool   `json:"cameraRunning"`
	DroppedFrames uint64 `json:"droppedFrames"`
	SpeechInput   bool   `json:"speechInput"`
	Listening     bool   `json:"listening"`
}

// Inputs reports the camera feed and microphone state.
func (h *Handle) Inputs() InputStatus {
	return InputStatus{
		CameraRunning: h.Feed.Running(),
		DroppedFrames: h.Feed.Dropped(),
		SpeechInput:   h.Capture.Available(),
		Listening:     h.Capture.Listening(),
	}
}

func (h *Handle) close() {
	h.Controller.Close()
	h.voice.Close()
	h.Capture.Wait()
}

// Manager owns all live sessions.
type Manager struct {
	cfg ManagerConfig

	mu       sync.RWMutex
	sessions map[string]*Handle
}

func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Locale == "" {
		cfg.Locale = "en-US"
	}
	return &Manager{cfg: cfg, sessions: make(map[string]*Handle)}
}

// Create builds a session in the Idle phase.
func (m *Manager) Create() *Handle {
	id := uuid.NewString()
	bus := NewBus()
	feed := landmark.NewStreamSource(m.cfg.FrameBuffer)

	coordinator := voice.NewCoordinator(voice.Options{
		Synth:     m.cfg.Synth,
		Player:    NewBusPlayer(bus, id),
		Catalog:   m.cfg.Catalog,
		Preferred: m.cfg.PreferredVoice,
		Logger:    logrus.WithFields(logrus.Fields{"component": "voice", "session": id}),
	})

	ctrl := NewController(Config{
		ID:             id,
		Backend:        m.cfg.Backend,
		Source:         feed,
		Voice:          coordinator,
		Bus:            bus,
		Locale:         m.cfg.Locale,
		RequestTimeout: m.cfg.RequestTimeout,
	})

	spoken := func(ctx context.Context, text string) {
		if _, err := ctrl.Answer(ctx, text, interview.AnswerSpoken); err != nil {
			logrus.WithError(err).WithField("session", id).Debug("spoken answer dropped")
		}
	}
	h := &Handle{
		Controller: ctrl,
		Feed:       feed,
		Capture:    capture.New(m.cfg.Transcriber, spoken, capture.Options{SessionID: id, Locale: m.cfg.Locale}),
		voice:      coordinator,
	}

	m.mu.Lock()
	m.sessions[id] = h
	m.mu.Unlock()

	logrus.WithField("session", id).Info("session created")
	return h
}

func (m *Manager) Get(id string) (*Handle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	h, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return h, nil
}

// List returns snapshots of all sessions ordered by last update, newest first.
func (m *Manager) List(ctx context.Context) []interview.Session {
	m.mu.RLock()
	handles := make([]*Handle, 0, len(m.sessions))
	for _, h := range m.sessions {
		handles = append(handles, h)
	}
	m.mu.RUnlock()

	out := make([]interview.Session, 0, len(handles))
	for _, h := range handles {
		s, err := h.Controller.Snapshot(ctx)
		if err != nil {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out
}

// Remove closes a session and forgets it.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	h, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	h.close()
	return nil
}

// Close shuts every session down.
func (m *Manager) Close() {
	m.mu.Lock()
	handles := m.sessions
	m.sessions = make(map[string]*Handle)
	m.mu.Unlock()

	for _, h := range handles {
		h.close()
	}
}
