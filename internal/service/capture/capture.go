package capture

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/mock-interview/backend/internal/model/speech"
)

// DefaultMaxBytes bounds one utterance: about two minutes of 16kHz 16-bit mono PCM.
const DefaultMaxBytes = 4 << 20

var (
	ErrNotListening = errors.New("capture is not listening")
	ErrTooLarge     = errors.New("utterance exceeds capture limit")
)

// Transcriber converts one buffered utterance into text.
type Transcriber interface {
	TranscribeBuffer(ctx context.Context, sessionID string, audio []byte, format, language string) (*speech.ASRResponse, error)
}

// MessageHandler receives every non-empty transcript.
type MessageHandler func(ctx context.Context, text string)

type Options struct {
	SessionID string
	Locale    string
	Format    string
	MaxBytes  int
}

// Capture is a push-to-talk recorder: Toggle on, Feed audio, Toggle off to
// transcribe what was said.
type Capture struct {
	transcriber Transcriber
	handler     MessageHandler
	opts        Options
	log         *logrus.Entry

	mu        sync.Mutex
	listening bool
	buf       bytes.Buffer

	wg sync.WaitGroup
}

func New(t Transcriber, handler MessageHandler, opts Options) *Capture {
	if opts.Format == "" {
		opts.Format = "pcm"
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	return &Capture{
		transcriber: t,
		handler:     handler,
		opts:        opts,
		log:         logrus.WithFields(logrus.Fields{"component": "capture", "session": opts.SessionID}),
	}
}

// Available reports whether speech input can be used at all.
func (c *Capture) Available() bool {
	return c.transcriber != nil
}

// Listening reports the current toggle state.
func (c *Capture) Listening() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listening
}

// SetLocale changes the recognition language for later utterances.
func (c *Capture) SetLocale(locale string) {
	c.mu.Lock()
	c.opts.Locale = locale
	c.mu.Unlock()
}

// Toggle flips listening and returns the new state. Turning listening off
// hands the buffered audio to the transcriber in the background.
func (c *Capture) Toggle(ctx context.Context) bool {
	c.mu.Lock()
	if !c.listening {
		c.listening = true
		c.buf.Reset()
		c.mu.Unlock()
		return true
	}

	c.listening = false
	audio := bytes.Clone(c.buf.Bytes())
	c.buf.Reset()
	locale := c.opts.Locale
	c.mu.Unlock()

	if len(audio) == 0 {
		return false
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.transcribe(ctx, audio, locale)
	}()
	return false
}

// Feed appends audio while listening.
func (c *Capture) Feed(chunk []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.listening {
		return ErrNotListening
	}
	if c.buf.Len()+len(chunk) > c.opts.MaxBytes {
		return ErrTooLarge
	}
	c.buf.Write(chunk)
	return nil
}

// Wait blocks until every started transcription has been delivered.
func (c *Capture) Wait() {
	c.wg.Wait()
}

func (c *Capture) transcribe(ctx context.Context, audio []byte, locale string) {
	if c.transcriber == nil {
		c.log.Debug("no transcriber configured, utterance discarded")
		return
	}

	resp, err := c.transcriber.TranscribeBuffer(ctx, c.opts.SessionID, audio, c.opts.Format, locale)
	if err != nil {
		c.log.WithError(err).Warn("transcription failed")
		return
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" || c.handler == nil {
		return
	}
	c.handler(ctx, text)
}
