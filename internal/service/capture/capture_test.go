package capture

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/mock-interview/backend/internal/model/speech"
)

type fakeTranscriber struct {
	text string
	err  error

	mu     sync.Mutex
	audio  [][]byte
	locale []string
}

func (f *fakeTranscriber) TranscribeBuffer(_ context.Context, _ string, audio []byte, _, language string) (*speech.ASRResponse, error) {
	f.mu.Lock()
	f.audio = append(f.audio, audio)
	f.locale = append(f.locale, language)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &speech.ASRResponse{Text: f.text}, nil
}

type collector struct {
	mu    sync.Mutex
	texts []string
}

func (c *collector) handle(_ context.Context, text string) {
	c.mu.Lock()
	c.texts = append(c.texts, text)
	c.mu.Unlock()
}

func TestToggleTranscribesOneUtterance(t *testing.T) {
	tr := &fakeTranscriber{text: "  I led the migration.  "}
	got := &collector{}
	c := New(tr, got.handle, Options{SessionID: "s1", Locale: "en-US"})

	require.True(t, c.Toggle(context.Background()))
	require.NoError(t, c.Feed([]byte{1, 2}))
	require.NoError(t, c.Feed([]byte{3}))
	require.False(t, c.Toggle(context.Background()))
	c.Wait()

	assert.Equal(t, []string{"I led the migration."}, got.texts)
	assert.Equal(t, [][]byte{{1, 2, 3}}, tr.audio)
	assert.Equal(t, []string{"en-US"}, tr.locale)
	assert.False(t, c.Listening())
}

func TestEmptyTranscriptIsNotForwarded(t *testing.T) {
	got := &collector{}
	c := New(&fakeTranscriber{text: "   "}, got.handle, Options{})

	c.Toggle(context.Background())
	require.NoError(t, c.Feed([]byte{1}))
	c.Toggle(context.Background())
	c.Wait()

	assert.Empty(t, got.texts)
}

func TestTranscriptionFailureResetsState(t *testing.T) {
	got := &collector{}
	c := New(&fakeTranscriber{err: errors.New("asr down")}, got.handle, Options{})

	c.Toggle(context.Background())
	require.NoError(t, c.Feed([]byte{1}))
	c.Toggle(context.Background())
	c.Wait()

	assert.Empty(t, got.texts)
	assert.False(t, c.Listening())
	assert.True(t, c.Toggle(context.Background()), "capture can be restarted after a failure")
}

func TestFeedRequiresListening(t *testing.T) {
	c := New(&fakeTranscriber{}, nil, Options{MaxBytes: 2})
	assert.ErrorIs(t, c.Feed([]byte{1}), ErrNotListening)

	c.Toggle(context.Background())
	require.NoError(t, c.Feed([]byte{1, 2}))
	assert.ErrorIs(t, c.Feed([]byte{3}), ErrTooLarge)
}

func TestSilentToggleSkipsTranscriber(t *testing.T) {
	tr := &fakeTranscriber{text: "x"}
	c := New(tr, nil, Options{})
	c.Toggle(context.Background())
	c.Toggle(context.Background())
	c.Wait()
	assert.Empty(t, tr.audio)
}

func TestSetLocale(t *testing.T) {
	tr := &fakeTranscriber{text: "namaskaram"}
	c := New(tr, nil, Options{Locale: "en-US"})
	c.SetLocale("ml-IN")

	c.Toggle(context.Background())
	require.NoError(t, c.Feed([]byte{1}))
	c.Toggle(context.Background())
	c.Wait()

	assert.Equal(t, []string{"ml-IN"}, tr.locale)
}
