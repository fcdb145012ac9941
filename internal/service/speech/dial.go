package speech

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	speechmodel "github.com/zhouzirui/mock-interview/backend/internal/model/speech"
)

// ErrNotConfigured 缺少 AppID / AccessToken
var ErrNotConfigured = errors.New("speech credentials are not configured")

type credentials struct {
	appID string
	token string
}

func resolveCredentials(cfg *speechmodel.SpeechConfig) (credentials, error) {
	if cfg == nil {
		return credentials{}, ErrNotConfigured
	}
	c := credentials{
		appID: strings.TrimSpace(cfg.AppID),
		token: strings.TrimSpace(cfg.AccessToken),
	}
	if c.token == "" {
		c.token = strings.TrimSpace(cfg.APIKey)
	}
	if c.appID == "" || c.token == "" {
		return credentials{}, ErrNotConfigured
	}
	return c, nil
}

// dialer 建立带鉴权头的 WebSocket 连接，握手失败时有限重试
type dialer struct {
	ws         *websocket.Dialer
	maxRetries int
	backoff    time.Duration
}

func newDialer(timeout time.Duration) *dialer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &dialer{
		ws:         &websocket.Dialer{HandshakeTimeout: timeout},
		maxRetries: 3,
		backoff:    time.Second,
	}
}

func (d *dialer) dial(ctx context.Context, url string, creds credentials, resourceID, connectID string) (*websocket.Conn, error) {
	if connectID == "" {
		connectID = uuid.NewString()
	}
	header := http.Header{}
	header.Set("X-Api-App-Key", creds.appID)
	header.Set("X-Api-Access-Key", creds.token)
	header.Set("X-Api-Resource-Id", resourceID)
	header.Set("X-Api-Connect-Id", connectID)

	var lastErr error
	for attempt := 0; attempt < d.maxRetries; attempt++ {
		conn, resp, err := d.ws.DialContext(ctx, url, header)
		if err == nil {
			if logid := resp.Header.Get("X-Tt-Logid"); logid != "" {
				logrus.WithFields(logrus.Fields{"logid": logid, "resource": resourceID}).Debug("speech connected")
			}
			return conn, nil
		}
		lastErr = err

		// 4xx 握手失败（鉴权、资源不匹配）重试无意义
		if resp != nil && resp.StatusCode >= 400 && resp.StatusCode < 500 {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt+1) * d.backoff):
		}
	}
	return nil, fmt.Errorf("dial %s: %w", url, lastErr)
}

// readFrame 读取并解析一帧，payload 已解压
func readFrame(conn *websocket.Conn) (*Message, []byte, error) {
	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, nil, err
	}
	msg, err := DecodeMessage(data)
	if err != nil {
		return nil, nil, err
	}
	payload, err := decompress(msg.Payload, msg.Header.Compression)
	if err != nil {
		return nil, nil, err
	}
	return msg, payload, nil
}
