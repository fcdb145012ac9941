package voice

import (
	"context"
	"time"

	"github.com/zhouzirui/mock-interview/backend/internal/model/speech"
)

// SpeechSynthesizer is the text-to-speech provider surface.
type SpeechSynthesizer interface {
	SynthesizeSpeech(ctx context.Context, req *speech.TTSRequest) (*speech.TTSResponse, error)
}

// TTSSynthesizer adapts a speech provider to Synthesizer.
type TTSSynthesizer struct {
	provider SpeechSynthesizer
	format   string
}

func NewTTSSynthesizer(provider SpeechSynthesizer) *TTSSynthesizer {
	return &TTSSynthesizer{provider: provider, format: "mp3"}
}

func (s *TTSSynthesizer) Synthesize(ctx context.Context, text, locale, voiceID string) (*Audio, error) {
	resp, err := s.provider.SynthesizeSpeech(ctx, &speech.TTSRequest{
		Text:     text,
		Voice:    voiceID,
		Language: locale,
		Format:   s.format,
	})
	if err != nil {
		return nil, err
	}

	voiceUsed := resp.Voice
	if voiceUsed == "" {
		voiceUsed = voiceID
	}
	return &Audio{
		Data:     resp.AudioData,
		Format:   resp.Format,
		Voice:    voiceUsed,
		Duration: time.Duration(resp.Duration) * time.Millisecond,
	}, nil
}
