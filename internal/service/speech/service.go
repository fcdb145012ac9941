package speech

import (
	"bytes"
	"context"
	"time"

	"github.com/zhouzirui/mock-interview/backend/internal/model/speech"
)

// Service 语音合成与识别入口
type Service struct {
	config *speech.SpeechConfig
	tts    *TTSClient
	asr    *ASRClient
}

// NewService 创建语音服务实例
func NewService(config *speech.SpeechConfig) *Service {
	if config == nil {
		config = &speech.SpeechConfig{}
	}
	d := newDialer(time.Duration(config.Timeout) * time.Second)
	return &Service{
		config: config,
		tts:    &TTSClient{config: config, dialer: d, url: ttsURL},
		asr:    &ASRClient{config: config, dialer: d, url: asrURL, interval: asrChunkInterval},
	}
}

// Configured 是否具备调用凭证
func (s *Service) Configured() bool {
	_, err := resolveCredentials(s.config)
	return err == nil
}

// SynthesizeSpeech 文字转语音
func (s *Service) SynthesizeSpeech(ctx context.Context, req *speech.TTSRequest) (*speech.TTSResponse, error) {
	return s.tts.Synthesize(ctx, req)
}

// TranscribeAudio 语音转文字
func (s *Service) TranscribeAudio(ctx context.Context, req *speech.ASRRequest) (*speech.ASRResponse, error) {
	return s.asr.Transcribe(ctx, req)
}

// TranscribeBuffer 识别一段完整音频
func (s *Service) TranscribeBuffer(ctx context.Context, sessionID string, audio []byte, format, language string) (*speech.ASRResponse, error) {
	return s.TranscribeAudio(ctx, &speech.ASRRequest{
		SessionID: sessionID,
		AudioData: bytes.NewReader(audio),
		Format:    format,
		Language:  language,
	})
}
