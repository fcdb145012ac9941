package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	speechmodel "github.com/zhouzirui/mock-interview/backend/internal/model/speech"
)

func testConfig() *speechmodel.SpeechConfig {
	return &speechmodel.SpeechConfig{AppID: "app", AccessToken: "token", TTSVoice: "en_default"}
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestMessageEncodeDecode(t *testing.T) {
	msg := &Message{
		Header:    newHeader(FullServerResponse, NegativeSequenceNumber|WithEvent, JSONSerialization, NoCompression),
		Sequence:  -4,
		Event:     EventTypeSessionFinished,
		SessionID: "sess-1",
		Payload:   []byte(`{"code":0}`),
	}

	decoded, err := DecodeMessage(msg.Encode())
	require.NoError(t, err)
	assert.Equal(t, FullServerResponse, decoded.Header.Type)
	assert.Equal(t, int32(-4), decoded.Sequence)
	assert.Equal(t, EventTypeSessionFinished, decoded.Event)
	assert.Equal(t, "sess-1", decoded.SessionID)
	assert.Equal(t, msg.Payload, decoded.Payload)
	assert.True(t, decoded.IsLastPacket())
}

func TestAudioOnlyRequestLastPacket(t *testing.T) {
	m := audioOnlyRequest([]byte{1, 2}, 5, true, NoCompression)
	assert.Equal(t, NegativeSequenceNumber, m.Header.Flags)
	assert.Equal(t, int32(-5), m.Sequence)

	m = audioOnlyRequest([]byte{1, 2}, 5, false, NoCompression)
	assert.Equal(t, PositiveSequenceNumber, m.Header.Flags)
	assert.False(t, m.IsLastPacket())
}

func TestGzipCompression(t *testing.T) {
	data := bytes.Repeat([]byte("tell me about yourself "), 20)
	packed, err := compress(data, GzipCompression)
	require.NoError(t, err)
	assert.Less(t, len(packed), len(data))

	unpacked, err := decompress(packed, GzipCompression)
	require.NoError(t, err)
	assert.Equal(t, data, unpacked)
}

func TestResourceCandidates(t *testing.T) {
	assert.Equal(t, []string{"volc.service_type.10029", "seed-tts-2.0"}, resourceCandidates(""))
	assert.Equal(t, []string{"volc.megatts.default"}, resourceCandidates("S_clone_speaker"))
	assert.Equal(t, []string{"seed-tts-2.0", "volc.service_type.10029"}, resourceCandidates("en_female_amy_jupiter_bigtts"))
}

func TestSpeakerCandidates(t *testing.T) {
	assert.Equal(t,
		[]string{"en_male_corey_emo_v2_mars_bigtts", "en_female_amy_jupiter_bigtts"},
		speakerCandidates("interviewer-male", "en_default"))
	assert.Equal(t, []string{"ZH_voice"}, speakerCandidates("ZH_voice", "zh_voice"))
	assert.Equal(t, []string{""}, speakerCandidates("", ""))
}

func TestNotConfigured(t *testing.T) {
	svc := NewService(&speechmodel.SpeechConfig{})
	assert.False(t, svc.Configured())

	_, err := svc.SynthesizeSpeech(context.Background(), &speechmodel.TTSRequest{Text: "hi"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestSynthesizeFallsBackOnResourceMismatch(t *testing.T) {
	var attempts atomic.Int32
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		resource := r.Header.Get("X-Api-Resource-Id")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		req, err := DecodeMessage(data)
		if err != nil || req.Header.Type != FullClientRequest {
			return
		}

		if resource == "seed-tts-2.0" {
			errMsg := &Message{
				Header:    newHeader(ErrorMessage, NoSequenceNumber, JSONSerialization, NoCompression),
				ErrorCode: 45000000,
				Payload:   []byte(`{"error":"resource ID is mismatched with speaker related resource"}`),
			}
			_ = conn.WriteMessage(websocket.BinaryMessage, errMsg.Encode())
			return
		}

		audio := &Message{
			Header:  newHeader(AudioOnlyServerResponse, NoSequenceNumber, NoSerialization, NoCompression),
			Payload: []byte("mp3-bytes"),
		}
		_ = conn.WriteMessage(websocket.BinaryMessage, audio.Encode())

		final, _ := json.Marshal(map[string]any{"code": 0, "reqid": "req-9", "sequence": -1, "addition": map[string]string{"duration": "1500"}})
		done := &Message{
			Header:   newHeader(FullServerResponse, NegativeSequenceNumber, JSONSerialization, NoCompression),
			Sequence: -2,
			Payload:  final,
		}
		_ = conn.WriteMessage(websocket.BinaryMessage, done.Encode())
	}))
	defer srv.Close()

	client := &TTSClient{config: testConfig(), dialer: newDialer(time.Second), url: wsURL(srv)}
	resp, err := client.Synthesize(context.Background(), &speechmodel.TTSRequest{Text: "Tell me about yourself.", SessionID: "s1"})
	require.NoError(t, err)

	assert.Equal(t, []byte("mp3-bytes"), resp.AudioData)
	assert.Equal(t, int64(1500), resp.Duration)
	assert.Equal(t, "req-9", resp.RequestID)
	assert.Equal(t, "en_female_amy_jupiter_bigtts", resp.Voice)
	assert.Equal(t, "mp3", resp.Format)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestTranscribe(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var received atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			msg, err := DecodeMessage(data)
			if err != nil {
				return
			}
			if msg.Header.Type != AudioOnlyRequest {
				continue
			}
			chunk, err := decompress(msg.Payload, msg.Header.Compression)
			if err != nil {
				return
			}
			received.Add(int64(len(chunk)))
			if msg.IsLastPacket() {
				break
			}
		}

		body, _ := json.Marshal(map[string]any{
			"code":     0,
			"sequence": -1,
			"result":   map[string]any{"utterances": []map[string]string{{"text": "I enjoy"}, {"text": "building systems."}}},
		})
		final := &Message{
			Header:   newHeader(FullServerResponse, NegativeSequenceNumber, JSONSerialization, NoCompression),
			Sequence: -1,
			Payload:  body,
		}
		_ = conn.WriteMessage(websocket.BinaryMessage, final.Encode())
	}))
	defer srv.Close()

	client := &ASRClient{config: testConfig(), dialer: newDialer(time.Second), url: wsURL(srv)}
	audio := bytes.Repeat([]byte{0x01}, asrChunkSize*2+100)

	resp, err := client.Transcribe(context.Background(), &speechmodel.ASRRequest{
		SessionID: "s1",
		AudioData: bytes.NewReader(audio),
		Format:    "pcm",
	})
	require.NoError(t, err)
	assert.Equal(t, "I enjoy building systems.", resp.Text)
	assert.Equal(t, int64(len(audio)), received.Load())
	assert.InDelta(t, 0.95, resp.Confidence, 1e-9)
}

func TestTranscribeRejectsEmptyAudio(t *testing.T) {
	client := &ASRClient{config: testConfig(), dialer: newDialer(time.Second), url: "ws://unused"}
	_, err := client.Transcribe(context.Background(), &speechmodel.ASRRequest{AudioData: bytes.NewReader(nil)})
	assert.ErrorIs(t, err, ErrNoAudio)
}
