package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/zhouzirui/chat-widget/backend/internal/config"
	"github.com/zhouzirui/chat-widget/backend/internal/handler"
	"github.com/zhouzirui/chat-widget/backend/internal/logging"
	"github.com/zhouzirui/chat-widget/backend/internal/service/chat"
	"github.com/zhouzirui/chat-widget/backend/internal/service/reply"
	"github.com/zhouzirui/chat-widget/backend/internal/service/widgetconfig"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("failed to load .env file, continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	if err := logging.Setup(cfg.Log); err != nil {
		log.Fatal().Err(err).Msg("failed to configure logging")
	}

	completer, err := newCompleter(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Resolver.Backend).Msg("failed to initialize reply backend")
	}

	loader := widgetconfig.NewLoader(cfg.Widget.Source, widgetconfig.WithFetchTimeout(cfg.Widget.FetchTimeout))
	resolver := reply.NewResolver(completer, cfg.Resolver.Timeout)
	chatService := chat.NewService(loader, resolver)

	router := handler.NewRouter(loader, resolver, chatService, cfg.Server.AllowedOrigins)

	g, gctx := errgroup.WithContext(ctx)

	// 配置文档异步加载，加载完成前挂件接口返回 503。
	g.Go(func() error {
		loader.Start(gctx)
		return nil
	})

	g.Go(func() error {
		return startServer(gctx, cfg.Server, router)
	})

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}

// newCompleter 根据 RESOLVER_BACKEND 选择远端回复实现。
func newCompleter(ctx context.Context, cfg *config.Config) (reply.Completer, error) {
	switch cfg.Resolver.Backend {
	case config.BackendArk:
		chatModel, err := cfg.AI.NewChatModel(ctx)
		if err != nil {
			return nil, err
		}
		completer, err := reply.NewArkCompleter(ctx, chatModel)
		if err != nil {
			return nil, err
		}
		log.Info().Str("model", cfg.AI.Model).Msg("ark reply backend initialized")
		return completer, nil
	case config.BackendHTTP:
		log.Info().Str("url", cfg.Resolver.URL).Msg("http reply backend initialized")
		// The resolver applies RESOLVER_TIMEOUT per call.
		return reply.NewHTTPCompleter(cfg.Resolver.URL, 0), nil
	default:
		return nil, fmt.Errorf("unknown resolver backend %q", cfg.Resolver.Backend)
	}
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) error {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Info().Str("addr", addr).Msg("chat widget backend listening")
	return runServer(ctx, srv)
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
