package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/mock-interview/backend/internal/model/speech"
)

const ttsURL = "wss://openspeech.bytedance.com/api/v3/tts/unidirectional/stream"

var (
	ErrEmptyText  = errors.New("tts text is empty")
	ErrEmptyAudio = errors.New("tts returned no audio")
)

// TTSClient 火山引擎单向流式合成
type TTSClient struct {
	config *speech.SpeechConfig
	dialer *dialer
	url    string
}

type ttsRequest struct {
	User struct {
		UID string `json:"uid"`
	} `json:"user"`
	ReqParams struct {
		Speaker     string         `json:"speaker"`
		Text        string         `json:"text"`
		AudioParams ttsAudioParams `json:"audio_params"`
		Language    string         `json:"language,omitempty"`
	} `json:"req_params"`
}

type ttsAudioParams struct {
	Format      string  `json:"format"`
	SampleRate  int     `json:"sample_rate"`
	SpeedRatio  float32 `json:"speed_ratio,omitempty"`
	VolumeRatio float32 `json:"volume_ratio,omitempty"`
}

type ttsServerMessage struct {
	ReqID    string `json:"reqid"`
	Code     int    `json:"code"`
	Message  string `json:"message"`
	Sequence int    `json:"sequence"`
	Data     string `json:"data"`
	Addition struct {
		Duration string `json:"duration,omitempty"`
	} `json:"addition,omitempty"`
}

// Synthesize 依次尝试候选音色与资源 ID，资源不匹配时换下一个
func (c *TTSClient) Synthesize(ctx context.Context, req *speech.TTSRequest) (*speech.TTSResponse, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyText
	}
	creds, err := resolveCredentials(c.config)
	if err != nil {
		return nil, err
	}

	format := strings.TrimSpace(req.Format)
	if format == "" || format == "wav" {
		format = "mp3"
	}

	speakers := speakerCandidates(req.Voice, c.config.TTSVoice)
	var lastMismatch error
	for _, speaker := range speakers {
		for _, resourceID := range resourceCandidates(speaker) {
			resp, err := c.synthesizeOnce(ctx, creds, req, speaker, format, resourceID)
			if err == nil {
				resp.Voice = speaker
				return resp, nil
			}
			if !isResourceMismatch(err) {
				return nil, err
			}
			logrus.WithFields(logrus.Fields{"speaker": speaker, "resource": resourceID}).Debug("tts resource mismatch, trying next")
			lastMismatch = err
		}
	}
	if lastMismatch != nil {
		return nil, lastMismatch
	}
	return nil, fmt.Errorf("tts: no usable speaker among %v", speakers)
}

func (c *TTSClient) synthesizeOnce(ctx context.Context, creds credentials, req *speech.TTSRequest, speaker, format, resourceID string) (*speech.TTSResponse, error) {
	connectID := uuid.NewString()
	conn, err := c.dialer.dial(ctx, c.url, creds, resourceID, connectID)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	body, uid := c.buildRequest(req, speaker, format)
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal tts request: %w", err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, fullClientRequest(payload, NoCompression).Encode()); err != nil {
		return nil, fmt.Errorf("send tts request: %w", err)
	}

	var (
		audio    bytes.Buffer
		reqID    = connectID
		duration int64
	)
	for {
		msg, payload, err := readFrame(conn)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("read tts response: %w", err)
		}

		switch msg.Header.Type {
		case ErrorMessage:
			return nil, fmt.Errorf("tts error %d: %s", msg.ErrorCode, payload)

		case AudioOnlyServerResponse:
			audio.Write(payload)

		case FullServerResponse:
			var sr ttsServerMessage
			if len(payload) > 0 {
				if err := json.Unmarshal(payload, &sr); err != nil {
					logrus.WithError(err).Debug("tts: unparsable server payload")
				}
			}
			if sr.Code != 0 && sr.Code != 3000 {
				return nil, fmt.Errorf("tts api error %d: %s", sr.Code, sr.Message)
			}
			if sr.ReqID != "" {
				reqID = sr.ReqID
			}
			if ms, err := strconv.ParseInt(sr.Addition.Duration, 10, 64); err == nil {
				duration = ms
			}
			if sr.Data != "" {
				chunk, err := base64.StdEncoding.DecodeString(sr.Data)
				if err != nil {
					return nil, fmt.Errorf("decode tts audio chunk: %w", err)
				}
				audio.Write(chunk)
			}

			finished := msg.hasEvent() && msg.Event == EventTypeSessionFinished
			if finished || msg.IsLastPacket() || sr.Sequence < 0 {
				if audio.Len() == 0 {
					return nil, ErrEmptyAudio
				}
				sessionID := strings.TrimSpace(req.SessionID)
				if sessionID == "" {
					sessionID = uid
				}
				return &speech.TTSResponse{
					SessionID: sessionID,
					AudioData: audio.Bytes(),
					Duration:  duration,
					Format:    format,
					RequestID: reqID,
					CreatedAt: time.Now(),
				}, nil
			}
		}
	}
}

func (c *TTSClient) buildRequest(req *speech.TTSRequest, speaker, format string) (*ttsRequest, string) {
	r := &ttsRequest{}

	r.User.UID = strings.TrimSpace(req.SessionID)
	if r.User.UID == "" {
		r.User.UID = uuid.NewString()
	}
	r.ReqParams.Speaker = speaker
	r.ReqParams.Text = req.Text
	r.ReqParams.AudioParams.Format = format
	r.ReqParams.AudioParams.SampleRate = 24000

	if speed := firstPositive(req.Speed, c.config.TTSSpeed); speed > 0 && speed != 1 {
		r.ReqParams.AudioParams.SpeedRatio = speed
	}
	if volume := firstPositive(req.Volume, c.config.TTSVolume); volume > 0 && volume != 1 {
		r.ReqParams.AudioParams.VolumeRatio = volume
	}
	r.ReqParams.Language = strings.TrimSpace(req.Language)
	if r.ReqParams.Language == "" {
		r.ReqParams.Language = strings.TrimSpace(c.config.TTSLanguage)
	}
	return r, r.User.UID
}

func firstPositive(values ...float32) float32 {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

// resourceCandidates 按音色命名推断资源 ID：S_ 前缀为复刻音色，bigtts 等为 2.0 资源
func resourceCandidates(voice string) []string {
	const (
		legacyResource = "volc.service_type.10029"
		megaResource   = "volc.megatts.default"
		seedResource   = "seed-tts-2.0"
	)

	voice = strings.TrimSpace(voice)
	if strings.HasPrefix(voice, "S_") {
		return []string{megaResource}
	}
	normalized := strings.ToLower(voice)
	for _, hint := range []string{"bigtts", "seed", "megatts", "uranus", "venus", "jupiter", "mars"} {
		if strings.Contains(normalized, hint) {
			return []string{seedResource, legacyResource}
		}
	}
	return []string{legacyResource, seedResource}
}

// speakerCandidates 请求音色优先，其次为配置默认音色；别名先展开，忽略大小写去重
func speakerCandidates(requested, fallback string) []string {
	var out []string
	add := func(s string) {
		s = NormalizeVoiceAlias(s)
		if s == "" {
			return
		}
		for _, existing := range out {
			if strings.EqualFold(existing, s) {
				return
			}
		}
		out = append(out, s)
	}
	add(requested)
	add(fallback)
	if len(out) == 0 {
		// 交给服务端默认音色
		return []string{""}
	}
	return out
}

func isResourceMismatch(err error) bool {
	return err != nil && strings.Contains(err.Error(), "resource ID is mismatched with speaker related resource")
}
