package verify

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"x-persona-bot/internal/domain"
)

// Имена провайдеров в конфигурации.
const (
	ProviderDiscord    = "DISCORD"
	ProviderRaiinmaker = "RAIINMAKER"
)

// DirectPostFunc публикует черновик в обход верификации. Используется
// как fallback, когда отправка на проверку не удалась, а конфигурация
// разрешает прямую публикацию.
type DirectPostFunc func(ctx context.Context, draft domain.Draft) error

// Options общие настройки провайдеров.
type Options struct {
	// DirectFallback разрешает публиковать напрямую при сбое отправки.
	// Внимание: включённый флаг позволяет обойти запрошенный approval-гейт.
	DirectFallback bool
	DirectPost     DirectPostFunc
}

// Config параметры выбора и создания провайдера.
type Config struct {
	Provider string
	Username string

	Discord struct {
		BotToken  string
		ChannelID string
	}

	Raiinmaker struct {
		BaseURL string
		AppID   string
		APIKey  string
	}
}

// New создаёт активного провайдера верификации по конфигурации.
// Нераспознанное значение провайдера даёт RAIINMAKER с предупреждением.
func New(cfg Config, logger zerolog.Logger, opts Options) (domain.Verifier, error) {
	switch strings.ToUpper(strings.TrimSpace(cfg.Provider)) {
	case ProviderDiscord:
		return NewDiscord(cfg.Discord.BotToken, cfg.Discord.ChannelID, cfg.Username, logger, opts)
	case ProviderRaiinmaker:
		return NewRaiinmaker(cfg.Raiinmaker.BaseURL, cfg.Raiinmaker.AppID, cfg.Raiinmaker.APIKey, cfg.Username, logger, opts)
	default:
		logger.Warn().Str("provider", cfg.Provider).Msg("verify: неизвестный провайдер, используем RAIINMAKER")
		return NewRaiinmaker(cfg.Raiinmaker.BaseURL, cfg.Raiinmaker.AppID, cfg.Raiinmaker.APIKey, cfg.Username, logger, opts)
	}
}
