package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"x-persona-bot/internal/adapters/generator"
	"x-persona-bot/internal/adapters/media"
	"x-persona-bot/internal/adapters/notify"
	"x-persona-bot/internal/adapters/pending"
	"x-persona-bot/internal/adapters/recorder"
	"x-persona-bot/internal/adapters/twitter"
	"x-persona-bot/internal/adapters/verify"
	"x-persona-bot/internal/domain"
	"x-persona-bot/internal/infra/cache"
	"x-persona-bot/internal/infra/config"
	"x-persona-bot/internal/infra/db"
	applog "x-persona-bot/internal/infra/log"
	"x-persona-bot/internal/infra/metrics"
	"x-persona-bot/internal/infra/openai"
	"x-persona-bot/internal/infra/persona"
	"x-persona-bot/internal/usecase/posting"
	"x-persona-bot/internal/usecase/schedule"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("poster: нет подключения к Redis")
	}
	store := cache.NewRedis(redisClient)

	var records domain.RecordSink
	if cfg.PGDSN != "" {
		pool, err := db.Connect(cfg.PGDSN)
		if err != nil {
			logger.Fatal().Err(err).Msg("poster: нет подключения к БД")
		}
		defer pool.Close()
		records = recorder.NewPostgres(pool)
	}

	character := persona.Default()
	if cfg.CharacterFile != "" {
		loaded, err := persona.Load(cfg.CharacterFile)
		if err != nil {
			logger.Fatal().Err(err).Str("path", cfg.CharacterFile).Msg("poster: не удалось загрузить персону")
		}
		character = loaded
	}
	if cfg.Twitter.Username != "" {
		character.Username = cfg.Twitter.Username
	}

	openaiClient := openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, time.Duration(cfg.OpenAI.TimeoutSec)*time.Second)
	textGenerator := generator.NewOpenAI(openaiClient, cfg.OpenAI.Model, character, cfg.Twitter.MaxTweetLength, time.Duration(cfg.OpenAI.TimeoutSec)*time.Second)

	publisher, err := twitter.NewClient(twitter.Credentials{
		APIKey:            cfg.Twitter.APIKey,
		APISecret:         cfg.Twitter.APISecret,
		AccessToken:       cfg.Twitter.AccessToken,
		AccessTokenSecret: cfg.Twitter.AccessTokenSecret,
	}, character.Username, cfg.Twitter.MaxTweetLength, logger.With().Str("component", "twitter").Logger())
	if err != nil {
		logger.Fatal().Err(err).Msg("poster: некорректная конфигурация Twitter")
	}

	var notifier domain.Notifier
	if cfg.Notify.TGToken != "" && cfg.Notify.TGChatID != 0 {
		tg, err := notify.NewTelegram(cfg.Notify.TGToken, cfg.Notify.TGChatID)
		if err != nil {
			logger.Error().Err(err).Msg("poster: нотификатор недоступен, продолжаем без него")
		} else {
			notifier = tg
		}
	}

	// Fallback-обработчик провайдеров публикует через пайплайн; ссылка
	// заполняется ниже, к моменту первого вызова она уже есть.
	var poster *posting.Service
	approvalEnabled := cfg.Approval.Enabled
	var verifier domain.Verifier
	if approvalEnabled {
		verifyCfg := verify.Config{
			Provider: cfg.Approval.Provider,
			Username: character.Username,
		}
		verifyCfg.Discord.BotToken = cfg.Approval.Discord.BotToken
		verifyCfg.Discord.ChannelID = cfg.Approval.Discord.ChannelID
		verifyCfg.Raiinmaker.BaseURL = cfg.Approval.Raiinmaker.BaseURL
		verifyCfg.Raiinmaker.AppID = cfg.Approval.Raiinmaker.AppID
		verifyCfg.Raiinmaker.APIKey = cfg.Approval.Raiinmaker.APIKey

		opts := verify.Options{
			DirectFallback: cfg.Twitter.PostImmediately,
			DirectPost: func(ctx context.Context, draft domain.Draft) error {
				return poster.PublishDraft(ctx, draft)
			},
		}
		verifier, err = verify.New(verifyCfg, logger.With().Str("component", "verify").Logger(), opts)
		if err != nil {
			// Верификация настроена, но непригодна: работаем без неё,
			// чтобы пайплайн не останавливался целиком.
			logger.Error().Err(err).Msg("poster: верификация недоступна, публикуем без согласования")
			approvalEnabled = false
			verifier = nil
		} else {
			defer verifier.Close()
		}
	}

	poster = posting.NewService(
		textGenerator,
		media.NewSelector(cfg.Media.FolderPath),
		publisher,
		verifier,
		pending.NewStore(store, character.Username),
		records,
		notifier,
		store,
		logger.With().Str("component", "posting").Logger(),
		posting.Config{
			Username:        character.Username,
			DryRun:          cfg.Twitter.DryRun,
			MaxTweetLength:  cfg.Twitter.MaxTweetLength,
			ApprovalEnabled: approvalEnabled,
		},
	)

	scheduler := schedule.NewService(poster, logger.With().Str("component", "schedule").Logger(), schedule.Config{
		EnableGeneration: cfg.Twitter.EnableGeneration,
		PostIntervalMin:  time.Duration(cfg.Twitter.PostIntervalMin) * time.Minute,
		PostIntervalMax:  time.Duration(cfg.Twitter.PostIntervalMax) * time.Minute,
		ApprovalEnabled:  approvalEnabled,
		CheckInterval:    time.Duration(cfg.Approval.CheckIntervalSec) * time.Second,
		MediaEnabled:     cfg.Media.Enabled,
		MediaIntervalMin: time.Duration(cfg.Media.IntervalMin) * time.Minute,
		MediaIntervalMax: time.Duration(cfg.Media.IntervalMax) * time.Minute,
	})
	scheduler.Start(ctx)

	go metrics.StartServer(ctx, logger, cfg.MetricsAddr)

	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Port), Handler: r}
	go func() {
		logger.Info().Int("port", cfg.Port).Msg("poster: http-сервер запущен")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("poster: http-сервер остановился с ошибкой")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("poster: получен сигнал остановки")

	scheduler.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("poster: ошибка остановки http-сервера")
	}
	logger.Info().Msg("poster: сервис остановлен")
}
