// server/internal/socket/hub.go
package socket

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Hub quản lý các client WebSocket theo project room. Mỗi client subscribe
// một projectID và nhận mọi change event của project đó; client đăng ký với
// projectID rỗng nhận tất cả (back-office view).
type Hub struct {
	// rooms: projectID -> clientID -> connection.
	rooms map[string]map[string]*websocket.Conn
	mu    sync.RWMutex
}

// NewHub tạo một Hub mới.
func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[string]*websocket.Conn),
	}
}

// Register thêm một client mới vào room của projectID.
func (h *Hub) Register(projectID, clientID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[projectID] == nil {
		h.rooms[projectID] = make(map[string]*websocket.Conn)
	}
	h.rooms[projectID][clientID] = conn
	logrus.WithFields(logrus.Fields{"projectID": projectID, "clientID": clientID}).Info("WebSocket client registered")
}

// Unregister xóa một client khỏi Hub.
func (h *Hub) Unregister(projectID, clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if room, ok := h.rooms[projectID]; ok {
		if _, ok := room[clientID]; ok {
			delete(room, clientID)
			if len(room) == 0 {
				delete(h.rooms, projectID)
			}
			logrus.WithFields(logrus.Fields{"projectID": projectID, "clientID": clientID}).Info("WebSocket client unregistered")
		}
	}
}

// Broadcast gửi một tin nhắn đến mọi client của project room và mọi client
// đang theo dõi toàn cục. Client offline không phải là lỗi nghiêm trọng.
// Giữ lock ghi trong suốt quá trình fan-out: gorilla/websocket không cho phép
// hai goroutine cùng WriteMessage trên một connection.
func (h *Hub) Broadcast(projectID string, message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	send := func(room map[string]*websocket.Conn) {
		for clientID, conn := range room {
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logrus.WithError(err).WithField("clientID", clientID).Warn("Failed to write to WebSocket client")
			}
		}
	}

	if projectID != "" {
		send(h.rooms[projectID])
	}
	send(h.rooms[""])
}
