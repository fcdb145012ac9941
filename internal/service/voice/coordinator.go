package voice

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/mock-interview/backend/internal/metrics"
	"github.com/zhouzirui/mock-interview/backend/internal/model/interview"
)

// Outcome describes how an utterance ended. It is reported for logging and
// metrics only; callers never wait on it.
type Outcome string

const (
	OutcomeCompleted   Outcome = "completed"
	OutcomeInterrupted Outcome = "interrupted"
	OutcomeFailed      Outcome = "failed"
)

// Audio is synthesized speech ready for playback.
type Audio struct {
	Data     []byte
	Format   string
	Voice    string
	Duration time.Duration
}

// Synthesizer turns text into audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, locale, voice string) (*Audio, error)
}

// Player renders an utterance and blocks until it has finished or ctx is
// cancelled. A nil audio means text-only delivery.
type Player interface {
	Play(ctx context.Context, u interview.Utterance, audio *Audio) error
}

// Options configures a Coordinator. Synth may be nil.
type Options struct {
	Synth     Synthesizer
	Player    Player
	Catalog   *Catalog
	Preferred string
	OnOutcome func(interview.Utterance, Outcome)
	Logger    *logrus.Entry
}

type request struct {
	utt    interview.Utterance
	ctx    context.Context
	cancel context.CancelFunc
}

// Coordinator plays at most one utterance at a time. A new Speak cancels
// whatever is in flight or waiting; nothing is ever queued behind it.
type Coordinator struct {
	opts Options
	log  *logrus.Entry

	mailbox chan *request

	mu      sync.Mutex
	current *request
	closed  bool

	done chan struct{}
	wg   sync.WaitGroup
}

func NewCoordinator(opts Options) *Coordinator {
	log := opts.Logger
	if log == nil {
		log = logrus.WithField("component", "voice")
	}
	c := &Coordinator{
		opts:    opts,
		log:     log,
		mailbox: make(chan *request, 1),
		done:    make(chan struct{}),
	}
	c.wg.Add(1)
	go c.run()
	return c
}

// Speak replaces any pending or playing utterance with u. It never blocks.
func (c *Coordinator) Speak(u interview.Utterance) {
	if strings.TrimSpace(u.Text) == "" {
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	stale := c.cancelLocked()
	ctx, cancel := context.WithCancel(context.Background())
	req := &request{utt: u, ctx: ctx, cancel: cancel}
	c.current = req
	c.mailbox <- req
	c.mu.Unlock()

	c.reportStale(stale)
}

// Stop cancels the in-flight utterance, if any.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	stale := c.cancelLocked()
	c.mu.Unlock()

	c.reportStale(stale)
}

// Close stops playback and waits for the worker to exit.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	stale := c.cancelLocked()
	close(c.done)
	c.mu.Unlock()

	c.reportStale(stale)
	c.wg.Wait()
}

// cancelLocked cancels the current request and empties the mailbox so the
// next send always finds a free slot. It returns a request that was taken
// from the mailbox before it ever played.
func (c *Coordinator) cancelLocked() *request {
	if c.current != nil {
		c.current.cancel()
		c.current = nil
	}
	select {
	case stale := <-c.mailbox:
		return stale
	default:
		return nil
	}
}

func (c *Coordinator) reportStale(stale *request) {
	if stale != nil {
		c.report(stale.utt, OutcomeInterrupted)
	}
}

func (c *Coordinator) run() {
	defer c.wg.Done()
	for {
		select {
		case <-c.done:
			return
		case req := <-c.mailbox:
			c.play(req)
		}
	}
}

func (c *Coordinator) play(req *request) {
	defer func() {
		c.mu.Lock()
		if c.current == req {
			c.current = nil
		}
		c.mu.Unlock()
		req.cancel()
	}()

	if req.ctx.Err() != nil {
		c.report(req.utt, OutcomeInterrupted)
		return
	}

	audio := c.synthesize(req)
	if req.ctx.Err() != nil {
		c.report(req.utt, OutcomeInterrupted)
		return
	}

	err := c.opts.Player.Play(req.ctx, req.utt, audio)
	switch {
	case err == nil:
		c.report(req.utt, OutcomeCompleted)
	case errors.Is(err, context.Canceled) || req.ctx.Err() != nil:
		c.report(req.utt, OutcomeInterrupted)
	default:
		c.log.WithError(err).Warn("playback failed")
		c.report(req.utt, OutcomeFailed)
	}
}

// synthesize returns nil when no synthesizer is configured or synthesis
// fails; the utterance then goes out as text only.
func (c *Coordinator) synthesize(req *request) *Audio {
	if c.opts.Synth == nil {
		return nil
	}
	voiceID := c.opts.Catalog.Select(req.utt.Locale, c.opts.Preferred)
	audio, err := c.opts.Synth.Synthesize(req.ctx, req.utt.Text, req.utt.Locale, voiceID)
	if err != nil {
		if req.ctx.Err() == nil {
			c.log.WithError(err).WithField("locale", req.utt.Locale).Warn("synthesis failed, delivering text only")
		}
		return nil
	}
	return audio
}

func (c *Coordinator) report(u interview.Utterance, o Outcome) {
	metrics.RecordUtterance(string(o))
	c.log.WithField("outcome", o).Debug("utterance finished")
	if c.opts.OnOutcome != nil {
		c.opts.OnOutcome(u, o)
	}
}

// EstimateDuration approximates speaking time for text-only playback.
func EstimateDuration(text string) time.Duration {
	words := len(strings.Fields(text))
	d := time.Duration(words) * 400 * time.Millisecond
	if d < time.Second {
		d = time.Second
	}
	return d
}
