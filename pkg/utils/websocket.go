package utils

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
)

// PingLoop 定期发送ping消息，直到ctx结束或写入失败
func PingLoop(ctx context.Context, conn *websocket.Conn, period, writeWait time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
