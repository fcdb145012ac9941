package speech

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/mock-interview/backend/internal/model/speech"
)

const (
	asrURL = "wss://openspeech.bytedance.com/api/v3/sauc/bigmodel_nostream"

	// 16kHz / 16bit / 单声道，每包 200ms
	asrChunkSize     = 6400
	asrChunkInterval = 200 * time.Millisecond
)

var ErrNoAudio = errors.New("no audio data to transcribe")

// ASRClient 火山引擎大模型流式识别（流式输入模式）
type ASRClient struct {
	config *speech.SpeechConfig
	dialer *dialer

	url      string
	interval time.Duration // 发送节流间隔
}

type asrRequest struct {
	User struct {
		UID string `json:"uid,omitempty"`
	} `json:"user"`
	Audio struct {
		Language string `json:"language,omitempty"`
		Format   string `json:"format"`
		Codec    string `json:"codec,omitempty"`
		Rate     int    `json:"rate,omitempty"`
		Bits     int    `json:"bits,omitempty"`
		Channel  int    `json:"channel,omitempty"`
	} `json:"audio"`
	Request struct {
		ModelName      string `json:"model_name"`
		EnableITN      bool   `json:"enable_itn,omitempty"`
		EnablePunc     bool   `json:"enable_punc,omitempty"`
		ShowUtterances bool   `json:"show_utterances,omitempty"`
		ResultType     string `json:"result_type,omitempty"`
		EndWindowSize  int    `json:"end_window_size,omitempty"`
	} `json:"request"`
}

type asrUtterance struct {
	Text string `json:"text"`
}

type asrServerMessage struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	Sequence int    `json:"sequence"`
	Result   struct {
		Text       string         `json:"text"`
		Utterances []asrUtterance `json:"utterances,omitempty"`
	} `json:"result,omitempty"`
	AudioInfo struct {
		Duration int64 `json:"duration"`
	} `json:"audio_info,omitempty"`
}

// Transcribe 上传整段音频并等待最终结果
func (c *ASRClient) Transcribe(ctx context.Context, req *speech.ASRRequest) (*speech.ASRResponse, error) {
	audio, err := io.ReadAll(req.AudioData)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, ErrNoAudio
	}

	creds, err := resolveCredentials(c.config)
	if err != nil {
		return nil, err
	}

	resourceID := "volc.bigasr.sauc.duration"
	if c.config.ConcurrentMode {
		resourceID = "volc.bigasr.sauc.concurrent"
	}

	conn, err := c.dialer.dial(ctx, c.url, creds, resourceID, req.SessionID)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	payload, err := json.Marshal(c.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("marshal asr request: %w", err)
	}
	compressed, err := compress(payload, GzipCompression)
	if err != nil {
		return nil, err
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, fullClientRequest(compressed, GzipCompression).Encode()); err != nil {
		return nil, fmt.Errorf("send asr request: %w", err)
	}

	// 发送与接收并行，服务端提前报错时可立即结束发送
	sendErr := make(chan error, 1)
	go func() { sendErr <- c.sendAudio(ctx, conn, audio) }()

	resp, err := c.receive(conn, req.SessionID)
	if err != nil {
		cancel()
		if sErr := <-sendErr; sErr != nil && !errors.Is(sErr, context.Canceled) {
			return nil, fmt.Errorf("send audio: %w", sErr)
		}
		return nil, err
	}
	return resp, nil
}

func (c *ASRClient) buildRequest(req *speech.ASRRequest) *asrRequest {
	r := &asrRequest{}
	r.User.UID = req.SessionID

	r.Audio.Format = req.Format
	if r.Audio.Format == "" {
		r.Audio.Format = "wav"
	}
	r.Audio.Language = firstNonEmpty(req.Language, c.config.ASRLanguage, "en-US")
	r.Audio.Codec = "raw"
	r.Audio.Rate = 16000
	r.Audio.Bits = 16
	r.Audio.Channel = 1

	r.Request.ModelName = "bigmodel"
	r.Request.EnableITN = true
	r.Request.EnablePunc = true
	r.Request.ShowUtterances = true
	r.Request.ResultType = "full"
	r.Request.EndWindowSize = 800
	return r
}

func (c *ASRClient) sendAudio(ctx context.Context, conn *websocket.Conn, audio []byte) error {
	seq := int32(2) // 序号 1 已被 full client request 占用
	for start := 0; start < len(audio); start += asrChunkSize {
		end := min(start+asrChunkSize, len(audio))
		last := end == len(audio)

		chunk, err := compress(audio[start:end], GzipCompression)
		if err != nil {
			return err
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, audioOnlyRequest(chunk, seq, last, GzipCompression).Encode()); err != nil {
			return err
		}
		seq++
		if last {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.interval):
		}
	}
	return nil
}

func (c *ASRClient) receive(conn *websocket.Conn, sessionID string) (*speech.ASRResponse, error) {
	var (
		text     string
		duration int64
	)
	for {
		msg, payload, err := readFrame(conn)
		if err != nil {
			return nil, fmt.Errorf("read asr response: %w", err)
		}

		switch msg.Header.Type {
		case ErrorMessage:
			return nil, fmt.Errorf("asr error %d: %s", msg.ErrorCode, payload)

		case FullServerResponse:
			var sr asrServerMessage
			if err := json.Unmarshal(payload, &sr); err != nil {
				logrus.WithError(err).Debug("asr: unparsable server payload")
				continue
			}
			if sr.Code != 0 && sr.Code != 20000000 {
				return nil, fmt.Errorf("asr api error %d: %s", sr.Code, sr.Message)
			}
			if candidate := resultText(sr); candidate != "" {
				text = candidate
			}
			if sr.AudioInfo.Duration > 0 {
				duration = sr.AudioInfo.Duration
			}

			if msg.IsLastPacket() || sr.Sequence < 0 {
				confidence := 0.0
				if strings.TrimSpace(text) != "" {
					confidence = 0.95
				}
				return &speech.ASRResponse{
					SessionID:  sessionID,
					Text:       text,
					Confidence: confidence,
					Duration:   duration,
					RequestID:  sessionID,
					CreatedAt:  time.Now(),
				}, nil
			}
		}
	}
}

func resultText(sr asrServerMessage) string {
	if sr.Result.Text != "" {
		return sr.Result.Text
	}
	parts := make([]string, 0, len(sr.Result.Utterances))
	for _, u := range sr.Result.Utterances {
		parts = append(parts, u.Text)
	}
	return strings.Join(parts, " ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
