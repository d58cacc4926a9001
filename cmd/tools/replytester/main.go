package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/chat-widget/backend/internal/config"
	"github.com/zhouzirui/chat-widget/backend/internal/logging"
	"github.com/zhouzirui/chat-widget/backend/internal/service/reply"
	"github.com/zhouzirui/chat-widget/backend/internal/service/widgetconfig"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("无法加载 .env，改用系统环境变量")
	}

	source := flag.String("config", "", "挂件配置来源 (文件路径或 URL)，默认使用 WIDGET_CONFIG_SOURCE")
	text := flag.String("text", "", "模拟访客输入的文本")
	url := flag.String("url", "", "远端回复服务地址，默认使用 RESOLVER_URL")
	timeout := flag.Duration("timeout", 0, "单次远端调用超时，默认使用 RESOLVER_TIMEOUT")
	flag.Parse()

	if strings.TrimSpace(*text) == "" {
		flag.Usage()
		log.Fatal().Msg("请通过 -text 指定输入文本")
	}

	if *url != "" {
		os.Setenv("RESOLVER_BACKEND", config.BackendHTTP)
		os.Setenv("RESOLVER_URL", *url)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("配置加载失败")
	}
	if err := logging.Setup(cfg.Log); err != nil {
		log.Fatal().Err(err).Msg("日志初始化失败")
	}

	if *source != "" {
		cfg.Widget.Source = *source
	}
	if *timeout > 0 {
		cfg.Resolver.Timeout = *timeout
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Widget.FetchTimeout+cfg.Resolver.Timeout+5*time.Second)
	defer cancel()

	loader := widgetconfig.NewLoader(cfg.Widget.Source, widgetconfig.WithFetchTimeout(cfg.Widget.FetchTimeout))
	widgetCfg, err := loader.Load(ctx)
	if err != nil {
		log.Fatal().Err(err).Str("source", cfg.Widget.Source).Msg("挂件配置无效")
	}

	var completer reply.Completer
	switch cfg.Resolver.Backend {
	case config.BackendArk:
		chatModel, err := cfg.AI.NewChatModel(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Ark 模型初始化失败")
		}
		completer, err = reply.NewArkCompleter(ctx, chatModel)
		if err != nil {
			log.Fatal().Err(err).Msg("Ark 回复链初始化失败")
		}
	default:
		completer = reply.NewHTTPCompleter(cfg.Resolver.URL, 0)
	}

	resolver := reply.NewResolver(completer, cfg.Resolver.Timeout)

	start := time.Now()
	result := resolver.Resolve(ctx, widgetCfg, *text)
	elapsed := time.Since(start)

	log.Info().
		Str("widget", widgetCfg.Name).
		Str("source", string(result.Source)).
		Dur("elapsed", elapsed).
		Msg("回复解析完成")

	if stats := resolver.Stats(); stats.LastFailure != "" {
		log.Warn().Str("reason", stats.LastFailure).Msg("远端回复失败，已使用兜底文案")
	}

	fmt.Println(result.Text)
}
