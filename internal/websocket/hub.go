// Package websocket 向运维端推送邮件生命周期事件的实时通道。
package websocket

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"mailbridge/backend/internal/domain"
)

// EventType 生命周期事件类型
type EventType string

const (
	EventMessageReceived  EventType = "message_received"
	EventApprovalRequired EventType = "approval_required"
	EventMessageApproved  EventType = "message_approved"
	EventMessageRejected  EventType = "message_rejected"
	EventMessageDeleted   EventType = "message_deleted"
	EventMessageReplied   EventType = "message_replied"
)

// Event 推送给客户端的事件
type Event struct {
	Type      EventType `json:"type"`
	MessageID uint64    `json:"messageId"`
	From      []string  `json:"from,omitempty"`
	Subject   string    `json:"subject,omitempty"`
	Priority  string    `json:"priority,omitempty"`
	State     string    `json:"state,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// upgraderFactory 创建带有 Origin 验证的 WebSocket 升级器
func upgraderFactory(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			for _, origin := range allowedOrigins {
				if origin == "*" {
					return true
				}
			}

			requestOrigin := r.Header.Get("Origin")
			if requestOrigin == "" {
				return true
			}

			for _, origin := range allowedOrigins {
				if requestOrigin == origin {
					return true
				}
			}
			return false
		},
	}
}

// Client 一个已连接的运维端
type Client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
	log  *zap.Logger
}

// Hub 管理所有事件订阅连接
type Hub struct {
	clients        map[string]*Client
	register       chan *Client
	unregister     chan *Client
	broadcast      chan *Event
	mu             sync.RWMutex
	log            *zap.Logger
	allowedOrigins []string
	apiToken       string
}

// NewHub 创建事件推送 Hub。连接认证复用管理接口的访问令牌。
func NewHub(allowedOrigins []string, apiToken string, logger *zap.Logger) *Hub {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	return &Hub{
		clients:        make(map[string]*Client),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		broadcast:      make(chan *Event, 256),
		log:            logger,
		allowedOrigins: allowedOrigins,
		apiToken:       apiToken,
	}
}

// Run 启动 Hub，ctx 取消时断开所有连接。
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.log.Info("websocket hub stopped")
			h.closeAllClients()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			h.mu.Unlock()
			h.log.Info("event subscriber connected", zap.String("id", client.id))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				close(client.send)
				h.log.Info("event subscriber disconnected", zap.String("id", client.id))
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			h.broadcastEvent(event)
		}
	}
}

// NotifyLifecycle 广播一条邮件生命周期事件。非阻塞，没有订阅者时直接丢弃。
func (h *Hub) NotifyLifecycle(eventType EventType, message *domain.Message) {
	event := &Event{
		Type:      eventType,
		MessageID: message.ID,
		From:      message.From,
		Subject:   message.Subject,
		Priority:  string(message.Priority),
		State:     string(message.State()),
		Timestamp: time.Now().UTC(),
	}

	select {
	case h.broadcast <- event:
	default:
		h.log.Warn("event broadcast channel full, dropping event",
			zap.String("type", string(eventType)),
			zap.Uint64("message_id", message.ID))
	}
}

func (h *Hub) broadcastEvent(event *Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Error("failed to marshal event", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		select {
		case client.send <- data:
		default:
			// 客户端阻塞，跳过
			h.log.Warn("client channel blocked, skipping", zap.String("id", client.id))
		}
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		close(client.send)
	}
	h.clients = make(map[string]*Client)
}

// HandleWebSocket 处理订阅连接。令牌通过 token 查询参数携带。
func HandleWebSocket(hub *Hub) gin.HandlerFunc {
	upgrader := upgraderFactory(hub.allowedOrigins)

	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(hub.apiToken)) != 1 {
			hub.log.Warn("websocket authentication failed",
				zap.String("remote_addr", c.ClientIP()))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			hub.log.Error("failed to upgrade connection",
				zap.Error(err),
				zap.String("origin", c.Request.Header.Get("Origin")),
				zap.String("remote_addr", c.ClientIP()))
			return
		}

		client := &Client{
			id:   uuid.NewString(),
			conn: conn,
			send: make(chan []byte, 256),
			hub:  hub,
			log:  hub.log,
		}

		hub.register <- client

		go client.writePump()
		go client.readPump()
	}
}

// readPump 消费客户端消息，仅用于探测断连。
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Error("websocket error", zap.Error(err))
			}
			break
		}
	}
}

// writePump 发送事件给客户端，定期 ping 维持连接。
func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			c.conn.WriteMessage(websocket.TextMessage, message)

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
