// server/internal/api/handlers/websocket_handler.go
package handlers

import (
	"net/http"
	"time"

	"ecoset-logistics-api-server/internal/socket"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Thời gian chờ tối đa cho một tin nhắn từ client.
const pongWait = 30 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WebSocketHandler struct {
	Hub *socket.Hub
}

// ServeWs xử lý các yêu cầu kết nối WebSocket. Client subscribe change feed
// của một dự án qua ?projectID=; projectID rỗng nhận mọi event.
func (h *WebSocketHandler) ServeWs(c *gin.Context) {
	projectID := c.Query("projectID")
	clientID := uuid.New().String()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Warn("Failed to upgrade connection")
		return
	}

	h.Hub.Register(projectID, clientID, conn)

	defer func() {
		h.Hub.Unregister(projectID, clientID)
		conn.Close()
	}()

	// Heartbeat: reset read deadline mỗi khi nhận được PING từ client.
	// Thư viện gorilla/websocket sẽ tự động gửi lại PONG.
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPingHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// Vòng lặp đọc: giữ kết nối sống cho đến khi client đóng.
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithError(err).Warn("Unexpected close error")
			}
			break
		}
	}
}
