package triage

import (
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/config"
)

// NewDriverFromConfig resolves the configured driver once at startup. The
// returned Driver is injected where needed; nothing reads configuration
// after this point.
func NewDriverFromConfig(cfg config.TriageConfig, logger *zap.Logger) Driver {
	switch cfg.Driver {
	case "openai":
		clientCfg := openai.DefaultConfig(cfg.OpenAIAPIKey)
		if cfg.OpenAIBaseURL != "" {
			clientCfg.BaseURL = cfg.OpenAIBaseURL
		}
		client := openai.NewClientWithConfig(clientCfg)
		return NewOpenAIDriver(client, cfg.OpenAIModel, cfg.Timeout(), logger)
	default:
		if cfg.Driver != "mock" && cfg.Driver != "heuristic" {
			logger.Warn("unknown triage driver; using heuristic", zap.String("driver", cfg.Driver))
		}
		return NewHeuristicDriver()
	}
}
