package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/mock-interview/backend/internal/analysis/posture"
	"github.com/zhouzirui/mock-interview/backend/internal/metrics"
	"github.com/zhouzirui/mock-interview/backend/internal/model/interview"
	"github.com/zhouzirui/mock-interview/backend/internal/service/landmark"
)

var (
	ErrInvalidTransition = errors.New("command not allowed in current phase")
	ErrEmptyAnswer       = errors.New("answer text is empty")
	ErrClosed            = errors.New("session is closed")
)

// Speaker is the voice output used for questions.
type Speaker interface {
	Speak(u interview.Utterance)
	Stop()
}

// Config wires a Controller. Backend, Source and Voice are required.
type Config struct {
	ID             string
	Backend        Backend
	Source         landmark.Source
	Voice          Speaker
	Bus            *Bus
	Locale         string
	RequestTimeout time.Duration
}

type reply struct {
	session interview.Session
	err     error
}

type command struct {
	fn    func() error
	reply chan reply
}

// result is produced off-loop by a backend call and applied on the loop
// only if no newer request has been issued since.
type result struct {
	gen   uint64
	apply func()
}

// Controller runs one coaching session. All state below the loop marker is
// owned by the loop goroutine; every other method talks to it by message.
type Controller struct {
	id      string
	cfg     Config
	bus     *Bus
	req     requestor
	log     *logrus.Entry
	ctx     context.Context
	cancel  context.CancelFunc
	cmds    chan command
	results chan result
	quit    chan struct{}
	done    chan struct{}
	once    sync.Once

	// loop
	state  interview.Session
	seq    *Sequencer
	scorer *posture.Scorer
	frames <-chan landmark.Frame
	gen    uint64
}

// NewController starts the session loop in the Idle phase.
func NewController(cfg Config) *Controller {
	if cfg.Bus == nil {
		cfg.Bus = NewBus()
	}
	if cfg.Locale == "" {
		cfg.Locale = "en-US"
	}
	log := logrus.WithFields(logrus.Fields{"component": "session", "session": cfg.ID})
	ctx, cancel := context.WithCancel(context.Background())

	c := &Controller{
		id:      cfg.ID,
		cfg:     cfg,
		bus:     cfg.Bus,
		req:     requestor{backend: cfg.Backend, timeout: cfg.RequestTimeout, log: log},
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
		cmds:    make(chan command),
		results: make(chan result),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
		scorer:  posture.NewScorer(),
	}
	c.state = interview.Session{ID: cfg.ID, Phase: interview.PhaseIdle, Score: interview.InitialScore(), UpdatedAt: time.Now()}

	metrics.SessionOpened()
	go c.loop()
	return c
}

func (c *Controller) ID() string { return c.id }

// Subscribe returns a stream of session events and a func to stop it.
func (c *Controller) Subscribe() (<-chan Event, func()) {
	return c.bus.Subscribe(DefaultSubscriberBuffer)
}

// Close stops the loop, releasing the landmark source and voice.
func (c *Controller) Close() {
	c.once.Do(func() { close(c.quit) })
	<-c.done
}

func (c *Controller) Snapshot(ctx context.Context) (interview.Session, error) {
	return c.do(ctx, func() error { return nil })
}

// BeginIntake moves Idle to Intake so the candidate can pick a resume or role.
func (c *Controller) BeginIntake(ctx context.Context) (interview.Session, error) {
	return c.do(ctx, func() error {
		if c.state.Phase != interview.PhaseIdle {
			return c.invalid("begin intake")
		}
		c.clearResults()
		c.setPhase(interview.PhaseIntake)
		return nil
	})
}

// Start requests questions for in. The session enters Loading and becomes
// Active once questions (or the default set) are available.
func (c *Controller) Start(ctx context.Context, in interview.Intake) (interview.Session, error) {
	if err := in.Validate(); err != nil {
		return interview.Session{}, err
	}
	return c.do(ctx, func() error {
		if c.state.Phase != interview.PhaseIdle && c.state.Phase != interview.PhaseIntake {
			return c.invalid("start")
		}

		c.scorer.Reset()
		c.clearResults()
		c.state.Questions = nil
		c.state.CurrentIndex = 0
		c.state.Answers = nil
		c.state.IntakeKind = in.Kind()
		c.state.Role = in.Role
		c.state.LoadingMessage = in.LoadingMessage()
		c.setPhase(interview.PhaseLoading)

		c.launch(func(ctx context.Context) func() {
			qs := c.req.questions(ctx, in)
			return func() { c.onQuestions(qs) }
		})
		return nil
	})
}

// Advance moves to the next question, or to Ending after the last one.
func (c *Controller) Advance(ctx context.Context) (interview.Session, error) {
	return c.do(ctx, func() error {
		if c.state.Phase != interview.PhaseActive {
			return c.invalid("advance")
		}
		next, done := c.seq.Advance()
		if done {
			c.enterEnding()
			return nil
		}
		c.state.CurrentIndex = c.seq.Index()
		c.speak(next)
		c.publishPhase()
		return nil
	})
}

// Repeat speaks the current question again without moving the index.
func (c *Controller) Repeat(ctx context.Context) (interview.Session, error) {
	return c.do(ctx, func() error {
		if c.state.Phase != interview.PhaseActive {
			return c.invalid("repeat")
		}
		c.speak(c.seq.Current())
		return nil
	})
}

// Cancel abandons the session from Intake or Active and returns to Idle,
// discarding score and answers.
func (c *Controller) Cancel(ctx context.Context) (interview.Session, error) {
	return c.do(ctx, func() error {
		switch c.state.Phase {
		case interview.PhaseIntake:
		case interview.PhaseActive:
			c.leaveActive()
		default:
			return c.invalid("cancel")
		}
		c.resetToIdle("")
		return nil
	})
}

// Dismiss closes the summary view.
func (c *Controller) Dismiss(ctx context.Context) (interview.Session, error) {
	return c.do(ctx, func() error {
		if c.state.Phase != interview.PhaseSummary {
			return c.invalid("dismiss")
		}
		c.resetToIdle("")
		return nil
	})
}

// Answer records a candidate response against the current question.
func (c *Controller) Answer(ctx context.Context, text string, source interview.AnswerSource) (interview.Session, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return interview.Session{}, ErrEmptyAnswer
	}
	return c.do(ctx, func() error {
		if c.state.Phase != interview.PhaseActive {
			return c.invalid("answer")
		}
		a := interview.Answer{
			QuestionIndex: c.state.CurrentIndex,
			Text:          text,
			Source:        source,
			CreatedAt:     time.Now(),
		}
		c.state.Answers = append(c.state.Answers, a)
		c.state.UpdatedAt = a.CreatedAt
		c.publish(Event{Type: EventAnswer, Answer: &a})
		return nil
	})
}

func (c *Controller) do(ctx context.Context, fn func() error) (interview.Session, error) {
	cmd := command{fn: fn, reply: make(chan reply, 1)}
	select {
	case c.cmds <- cmd:
	case <-c.done:
		return interview.Session{}, ErrClosed
	case <-ctx.Done():
		return interview.Session{}, ctx.Err()
	}

	select {
	case r := <-cmd.reply:
		return r.session, r.err
	case <-ctx.Done():
		return interview.Session{}, ctx.Err()
	}
}

func (c *Controller) loop() {
	defer close(c.done)
	for {
		select {
		case <-c.quit:
			c.shutdown()
			return

		case cmd := <-c.cmds:
			err := cmd.fn()
			cmd.reply <- reply{session: c.snapshot(), err: err}

		case r := <-c.results:
			if r.gen == c.gen {
				r.apply()
			}

		case f, ok := <-c.frames:
			if !ok {
				c.frames = nil
				continue
			}
			c.observe(f)
		}
	}
}

func (c *Controller) shutdown() {
	if c.state.Phase == interview.PhaseActive {
		c.leaveActive()
	}
	c.cancel()
	c.bus.Close()
	metrics.SessionClosed()
	c.log.Debug("session closed")
}

// launch runs call off-loop and posts the closure it returns back to the
// loop, tagged with a fresh generation.
func (c *Controller) launch(call func(ctx context.Context) func()) {
	c.gen++
	gen := c.gen
	go func() {
		apply := call(c.ctx)
		select {
		case c.results <- result{gen: gen, apply: apply}:
		case <-c.done:
		}
	}()
}

func (c *Controller) onQuestions(qs []string) {
	if c.state.Phase != interview.PhaseLoading {
		return
	}
	c.state.Questions = qs
	c.state.CurrentIndex = 0
	c.state.LoadingMessage = ""
	c.seq = NewSequencer(qs)
	c.scorer.Reset()
	c.state.Score = c.scorer.State()

	frames, err := c.cfg.Source.Start(c.ctx)
	if err != nil {
		c.log.WithError(err).Warn("landmark source unavailable, posture scoring disabled")
		c.publish(Event{Type: EventCamera, Message: err.Error()})
	} else {
		c.frames = frames
	}

	c.setPhase(interview.PhaseActive)
	c.speak(c.seq.Current())
}

func (c *Controller) enterEnding() {
	agg := c.scorer.State().Aggregate()
	c.leaveActive()
	c.scorer.Reset()
	c.setPhase(interview.PhaseEnding)

	c.launch(func(ctx context.Context) func() {
		res, err := c.req.summary(ctx, agg)
		return func() { c.onSummary(res, err) }
	})
}

func (c *Controller) onSummary(res interview.SummaryResult, err error) {
	if c.state.Phase != interview.PhaseEnding {
		return
	}
	if err != nil {
		c.log.WithError(err).Warn("analysis failed, session results discarded")
		c.publish(Event{Type: EventError, Message: err.Error()})
		c.resetToIdle(err.Error())
		return
	}
	c.state.Summary = &res
	c.setPhase(interview.PhaseSummary)
}

// leaveActive releases everything Active acquired. Every exit from Active
// goes through here.
func (c *Controller) leaveActive() {
	c.frames = nil
	c.cfg.Source.Stop()
	c.cfg.Voice.Stop()
}

func (c *Controller) resetToIdle(lastErr string) {
	c.gen++
	c.scorer.Reset()
	c.seq = nil
	c.state.Questions = nil
	c.state.CurrentIndex = 0
	c.state.Answers = nil
	c.state.IntakeKind = ""
	c.state.Role = ""
	c.state.LoadingMessage = ""
	c.clearResults()
	c.state.LastError = lastErr
	c.setPhase(interview.PhaseIdle)
}

func (c *Controller) clearResults() {
	c.state.Summary = nil
	c.state.LastError = ""
}

func (c *Controller) observe(f landmark.Frame) {
	if c.state.Phase != interview.PhaseActive {
		return
	}

	sample, err := posture.Classify(f.Landmarks)
	if f.Err != nil {
		err = f.Err
		sample = interview.FrameSample{}
	}
	switch {
	case err != nil:
		c.log.WithError(err).Debug("discarding malformed frame")
		metrics.RecordFrame("malformed")
	case !sample.HasFace:
		metrics.RecordFrame("no_face")
	case sample.Centered:
		metrics.RecordFrame("centered")
	default:
		metrics.RecordFrame("off_center")
	}

	c.scorer.Observe(sample)
	c.state.Score = c.scorer.State()

	update := &ScoreUpdate{ScoreState: c.state.Score, HasFace: sample.HasFace, Centered: sample.Centered}
	if g, ok := posture.GuideFor(sample.HasFace, sample.Centered); ok {
		update.Guide = &g
	}
	c.publish(Event{Type: EventScore, Score: update})
}

func (c *Controller) speak(text string) {
	c.cfg.Voice.Speak(interview.Utterance{Text: text, Locale: c.cfg.Locale})
}

func (c *Controller) setPhase(to interview.Phase) {
	from := c.state.Phase
	c.state.Phase = to
	c.state.Score = c.scorer.State()
	c.state.UpdatedAt = time.Now()

	metrics.RecordTransition(string(from), string(to))
	c.log.WithFields(logrus.Fields{"from": from, "to": to}).Info("phase changed")
	c.publishPhase()
}

func (c *Controller) publishPhase() {
	s := c.snapshot()
	c.publish(Event{Type: EventPhase, Session: &s})
}

func (c *Controller) publish(e Event) {
	e.SessionID = c.id
	c.bus.Publish(e)
}

// snapshot copies loop state so callers never share slices with it.
func (c *Controller) snapshot() interview.Session {
	s := c.state
	s.Questions = append([]string(nil), c.state.Questions...)
	s.Answers = append([]interview.Answer(nil), c.state.Answers...)
	if c.state.Summary != nil {
		sum := *c.state.Summary
		s.Summary = &sum
	}
	return s
}

func (c *Controller) invalid(op string) error {
	return fmt.Errorf("%w: %s in %s", ErrInvalidTransition, op, c.state.Phase)
}
