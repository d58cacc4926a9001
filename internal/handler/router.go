package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/chat-widget/backend/internal/handler/chat"
	"github.com/zhouzirui/chat-widget/backend/internal/handler/stream"
	"github.com/zhouzirui/chat-widget/backend/internal/handler/widget"
	"github.com/zhouzirui/chat-widget/backend/internal/handler/ws"
	middlewarePkg "github.com/zhouzirui/chat-widget/backend/internal/middleware"
	chatService "github.com/zhouzirui/chat-widget/backend/internal/service/chat"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(configs widget.ConfigSource, stats widget.StatsSource, chatSvc *chatService.Service, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(allowedOrigins))

	widgetHandler := widget.New(configs, stats)
	chatHandler := chat.New(chatSvc)
	streamHandler := stream.New(chatSvc)
	wsHandler := ws.New(chatSvc, allowedOrigins)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(api chi.Router) {
		widgetHandler.RegisterRoutes(api)
		chatHandler.RegisterRoutes(api)
		streamHandler.RegisterRoutes(api)
	})

	wsHandler.RegisterRoutes(r)

	return r
}
