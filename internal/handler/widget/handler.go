package widget

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/chat-widget/backend/internal/model/widget"
	"github.com/zhouzirui/chat-widget/backend/internal/service/reply"
	"github.com/zhouzirui/chat-widget/backend/internal/service/widgetconfig"
	"github.com/zhouzirui/chat-widget/backend/pkg/utils"
)

// ConfigSource is the loader view used by this handler.
type ConfigSource interface {
	Current() (*widget.Config, bool)
	Status() widgetconfig.Status
}

// StatsSource reports resolver counters.
type StatsSource interface {
	Stats() reply.Stats
}

// Handler 挂件配置与状态的HTTP处理器
type Handler struct {
	configs ConfigSource
	stats   StatsSource
}

// New 创建挂件处理器
func New(configs ConfigSource, stats StatsSource) *Handler {
	return &Handler{configs: configs, stats: stats}
}

// RegisterRoutes 注册挂件相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/widget", h.handleConfig)
	r.Get("/status", h.handleStatus)
}

// handleConfig 返回页面脚本所需的公开配置
func (h *Handler) handleConfig(w http.ResponseWriter, r *http.Request) {
	cfg, ok := h.configs.Current()
	if !ok {
		utils.RespondError(w, http.StatusServiceUnavailable, "widget unavailable")
		return
	}
	utils.RespondJSON(w, http.StatusOK, cfg.Public())
}

type statusResponse struct {
	Config   widgetconfig.Status `json:"config"`
	Resolver *reply.Stats        `json:"resolver,omitempty"`
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{Config: h.configs.Status()}
	if h.stats != nil {
		stats := h.stats.Stats()
		resp.Resolver = &stats
	}

	status := http.StatusOK
	if resp.Config.State != widgetconfig.StateReady {
		status = http.StatusServiceUnavailable
	}
	utils.RespondJSON(w, status, resp)
}
