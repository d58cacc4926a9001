package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/chat-widget/backend/internal/middleware"
	"github.com/zhouzirui/chat-widget/backend/internal/model/chat"
	chatservice "github.com/zhouzirui/chat-widget/backend/internal/service/chat"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
)

// Handler WebSocket会话处理器
type Handler struct {
	chatSvc  *chatservice.Service
	upgrader websocket.Upgrader
}

// New 创建WebSocket处理器
func New(chatSvc *chatservice.Service, allowedOrigins []string) *Handler {
	return &Handler{
		chatSvc: chatSvc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return middleware.OriginAllowed(allowedOrigins, r.Header.Get("Origin"))
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// TextMessage 文本消息
type TextMessage struct {
	Text string `json:"text"`
}

// SuggestionMessage 预设问题消息
type SuggestionMessage struct {
	Prompt string `json:"prompt"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// conn serialises writes; gorilla connections allow one concurrent writer.
type conn struct {
	*websocket.Conn
	mu sync.Mutex
}

func (c *conn) send(msg outgoingMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.SetWriteDeadline(time.Now().Add(writeWait))
	return c.WriteJSON(msg)
}

func (c *conn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// handleWebSocket 处理WebSocket连接
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	session, err := h.chatSvc.GetSession(r.Context(), sessionID)
	if err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	events, unsubscribe, err := h.chatSvc.Subscribe(session.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer unsubscribe()

	raw, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("session", sessionID).Msg("websocket upgrade failed")
		return
	}
	c := &conn{Conn: raw}
	defer c.Close()

	log.Info().Str("session", sessionID).Msg("websocket connected")

	// 连接关闭只停止推送循环，进行中的会话流程照常完成。
	flowCtx := context.WithoutCancel(r.Context())
	ctx, cancel := context.WithCancel(flowCtx)
	defer cancel()

	c.SetReadDeadline(time.Now().Add(pongWait))
	c.SetPongHandler(func(string) error {
		c.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go h.pingLoop(ctx, c)
	go h.forwardEvents(ctx, c, events)

	h.sendInfo(c, sessionID, "connected", session)

	for {
		var msg inboundMessage
		if err := c.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("session", sessionID).Msg("websocket read error")
			}
			return
		}
		c.SetReadDeadline(time.Now().Add(pongWait))

		// 每条消息独立处理，回复通过事件推送。
		go h.handleMessage(flowCtx, c, sessionID, &msg)
	}
}

func (h *Handler) handleMessage(ctx context.Context, c *conn, sessionID string, msg *inboundMessage) {
	var err error
	switch msg.Type {
	case "message":
		var text TextMessage
		if err = json.Unmarshal(msg.Data, &text); err != nil {
			h.sendError(c, "invalid message payload")
			return
		}
		_, err = h.chatSvc.Submit(ctx, sessionID, text.Text)
	case "suggestion":
		var suggestion SuggestionMessage
		if err = json.Unmarshal(msg.Data, &suggestion); err != nil {
			h.sendError(c, "invalid suggestion payload")
			return
		}
		_, err = h.chatSvc.SelectSuggestion(ctx, sessionID, suggestion.Prompt)
	case "toggle":
		_, err = h.chatSvc.Toggle(ctx, sessionID)
	default:
		h.sendError(c, "unsupported message type: "+msg.Type)
		return
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		h.sendError(c, err.Error())
	}
}

func (h *Handler) forwardEvents(ctx context.Context, c *conn, events <-chan chat.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := c.send(outgoingMessage{
				Type:      string(ev.Type),
				SessionID: ev.SessionID,
				Data:      ev,
				Timestamp: time.Now().Unix(),
			}); err != nil {
				log.Warn().Err(err).Str("session", ev.SessionID).Msg("websocket write failed")
				return
			}
		}
	}
}

func (h *Handler) sendInfo(c *conn, sessionID, kind string, data interface{}) {
	if err := c.send(outgoingMessage{
		Type:      kind,
		SessionID: sessionID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}); err != nil {
		log.Warn().Err(err).Str("session", sessionID).Msg("websocket write info failed")
	}
}

func (h *Handler) sendError(c *conn, message string) {
	if err := c.send(outgoingMessage{
		Type:      "error",
		Data:      map[string]string{"message": message},
		Timestamp: time.Now().Unix(),
	}); err != nil {
		log.Warn().Err(err).Msg("websocket write error failed")
	}
}

// pingLoop 定期发送ping消息
func (h *Handler) pingLoop(ctx context.Context, c *conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.ping(); err != nil {
				return
			}
		}
	}
}
