package posting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"x-persona-bot/internal/domain"
	"x-persona-bot/internal/infra/metrics"
)

// Config параметры пайплайна публикации.
type Config struct {
	Username        string
	DryRun          bool
	MaxTweetLength  int
	ApprovalEnabled bool
	MediaCount      int
}

// Service реализует пайплайн: генерация черновика, опциональная
// верификация, публикация и обработка очереди ожидающих решений.
type Service struct {
	generator domain.TextGenerator
	media     domain.MediaLibrary
	publisher domain.Publisher
	verifier  domain.Verifier
	pendings  domain.PendingStore
	records   domain.RecordSink
	notifier  domain.Notifier
	cache     domain.Cache
	logger    zerolog.Logger
	cfg       Config

	// busy исключает параллельные циклы генерации: совпавший тик
	// пропускается, а не ставится в очередь.
	busy             atomic.Bool
	lastPostHadMedia atomic.Bool

	now func() time.Time
}

// NewService создаёт сервис публикации. Верификатор, журнал и
// нотификатор опциональны: nil отключает соответствующий шаг.
func NewService(
	generator domain.TextGenerator,
	media domain.MediaLibrary,
	publisher domain.Publisher,
	verifier domain.Verifier,
	pendings domain.PendingStore,
	records domain.RecordSink,
	notifier domain.Notifier,
	cache domain.Cache,
	logger zerolog.Logger,
	cfg Config,
) *Service {
	if cfg.MediaCount <= 0 {
		cfg.MediaCount = 1
	}
	return &Service{
		generator: generator,
		media:     media,
		publisher: publisher,
		verifier:  verifier,
		pendings:  pendings,
		records:   records,
		notifier:  notifier,
		cache:     cache,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *Service) lastPostKey() string {
	return fmt.Sprintf("twitter/%s/lastPost", s.cfg.Username)
}

// GenerateAndPost выполняет один цикл: текстовый черновик, затем
// верификация либо прямая публикация. Повторный вызов во время
// работающего цикла пропускается без ошибки.
func (s *Service) GenerateAndPost(ctx context.Context) error {
	return s.run(ctx, domain.DraftText)
}

// GenerateMediaPost выполняет цикл медиапоста: случайный файл из
// библиотеки плюс сгенерированная подпись. Два медиапоста подряд не
// публикуются; пустая библиотека — не ошибка.
func (s *Service) GenerateMediaPost(ctx context.Context) error {
	if s.lastPostHadMedia.Load() {
		s.logger.Debug().Msg("posting: прошлый пост был с медиа, пропускаем медиацикл")
		return nil
	}
	return s.run(ctx, domain.DraftMedia)
}

func (s *Service) run(ctx context.Context, kind domain.DraftKind) error {
	if !s.busy.CompareAndSwap(false, true) {
		s.logger.Info().Msg("posting: предыдущий цикл ещё выполняется, пропускаем")
		return nil
	}
	defer s.busy.Store(false)

	var assets []domain.MediaAsset
	if kind == domain.DraftMedia {
		var err error
		assets, err = s.media.SelectRandom(s.cfg.MediaCount)
		if err != nil {
			return fmt.Errorf("posting: выбор медиа: %w", err)
		}
		if len(assets) == 0 {
			s.logger.Info().Msg("posting: библиотека медиа пуста, медиапост пропущен")
			return nil
		}
	}

	draft, err := s.generator.GenerateDraft(ctx, kind)
	if err != nil {
		metrics.GenerationErrors.Inc()
		return fmt.Errorf("posting: генерация черновика: %w", err)
	}
	draft.Media = assets

	if s.cfg.DryRun {
		s.logger.Info().Str("text", draft.Text).Int("media", len(draft.Media)).
			Msg("posting: dry-run, пост не отправлен")
		return nil
	}

	if s.cfg.ApprovalEnabled && s.verifier != nil {
		return s.submitForApproval(ctx, draft)
	}
	return s.publish(ctx, draft)
}

func (s *Service) submitForApproval(ctx context.Context, draft domain.Draft) error {
	result, err := s.verifier.Submit(ctx, draft)
	if err != nil {
		return fmt.Errorf("posting: отправка на верификацию: %w", err)
	}
	if result.DirectPosted {
		// Провайдер опубликовал пост сам через fallback-обработчик.
		s.logger.Warn().Msg("posting: пост опубликован напрямую, минуя верификацию")
		return nil
	}

	record := domain.PendingApproval{
		TextForPosting: draft.Text,
		RoomID:         draft.RoomID,
		RawContent:     draft.RawContent,
		TaskID:         result.TaskID,
		Timestamp:      s.now().UnixMilli(),
	}
	if err := s.pendings.Add(ctx, record); err != nil {
		return fmt.Errorf("posting: сохранение ожидающей записи: %w", err)
	}
	metrics.VerificationSubmitted.WithLabelValues(s.verifier.Name()).Inc()
	s.logger.Info().Str("task_id", result.TaskID).Msg("posting: черновик ждёт решения")
	return nil
}

// PublishDraft публикует черновик без верификации. Используется и как
// fallback-обработчик провайдеров при недоступной верификации.
func (s *Service) PublishDraft(ctx context.Context, draft domain.Draft) error {
	return s.publish(ctx, draft)
}

func (s *Service) publish(ctx context.Context, draft domain.Draft) error {
	for i := range draft.Media {
		if draft.Media[i].Data != nil {
			continue
		}
		if err := s.media.Load(&draft.Media[i]); err != nil {
			return fmt.Errorf("posting: загрузка медиа: %w", err)
		}
	}

	var posted domain.PostedTweet
	var err error
	if len([]rune(draft.Text)) > s.cfg.MaxTweetLength {
		posted, err = s.publisher.SendNoteTweet(ctx, draft.Text, draft.Media)
	} else {
		posted, err = s.publisher.SendTweet(ctx, draft.Text, draft.Media)
	}
	if err != nil {
		metrics.PostPublishErrors.Inc()
		if errors.Is(err, domain.ErrBadResponse) {
			// Искажённый ответ не лечится повтором, черновик отбрасываем.
			s.logger.Error().Err(err).Msg("posting: некорректный ответ API, черновик отброшен")
		}
		return fmt.Errorf("posting: публикация: %w", err)
	}

	metrics.PostsPublished.WithLabelValues(posted.Source).Inc()
	s.lastPostHadMedia.Store(len(draft.Media) > 0)
	s.finalize(ctx, posted)
	s.logger.Info().Str("tweet_id", posted.ID).Str("url", posted.URL).Msg("posting: пост опубликован")
	return nil
}

// finalize сохраняет служебные следы публикации. Сбои здесь не
// отменяют уже состоявшуюся публикацию и только логируются.
func (s *Service) finalize(ctx context.Context, posted domain.PostedTweet) {
	last := domain.LastPost{ID: posted.ID, Timestamp: posted.Timestamp.UnixMilli()}
	if raw, err := json.Marshal(last); err == nil {
		if err := s.cache.Set(s.lastPostKey(), raw, 0); err != nil {
			s.logger.Warn().Err(err).Msg("posting: не удалось сохранить отметку последнего поста")
		}
	}

	if s.records != nil {
		if err := s.records.SaveRecord(ctx, posted); err != nil {
			s.logger.Warn().Err(err).Msg("posting: не удалось записать журнал публикаций")
		}
	}
	if s.notifier != nil {
		text := fmt.Sprintf("Опубликован пост @%s: %s", s.cfg.Username, posted.URL)
		if err := s.notifier.Notify(ctx, text); err != nil {
			s.logger.Warn().Err(err).Msg("posting: не удалось уведомить оператора")
		}
	}
}

// LastPostAt возвращает время последней публикации, если отметка есть.
func (s *Service) LastPostAt() (time.Time, bool) {
	raw, err := s.cache.Get(s.lastPostKey())
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			s.logger.Warn().Err(err).Msg("posting: не удалось прочитать отметку последнего поста")
		}
		return time.Time{}, false
	}
	var last domain.LastPost
	if err := json.Unmarshal(raw, &last); err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(last.Timestamp), true
}

// ProcessPending один проход по очереди ожидающих решений. Просроченные
// записи удаляются без запроса статуса; ошибка проверки оставляет
// запись нетронутой до следующего прохода.
func (s *Service) ProcessPending(ctx context.Context) error {
	if !s.cfg.ApprovalEnabled || s.verifier == nil {
		return nil
	}

	records, err := s.pendings.List(ctx)
	if err != nil {
		return fmt.Errorf("posting: чтение очереди верификации: %w", err)
	}
	metrics.PendingQueueSize.Set(float64(len(records)))

	now := s.now()
	for _, record := range records {
		if record.Age(now) > domain.PendingTTL {
			s.logger.Warn().Str("task_id", record.TaskID).Msg("posting: запись просрочена, удаляем")
			metrics.PendingExpired.Inc()
			if err := s.pendings.Remove(ctx, record.TaskID); err != nil {
				s.logger.Warn().Err(err).Str("task_id", record.TaskID).Msg("posting: не удалось удалить просроченную запись")
			}
			continue
		}

		status, err := s.verifier.CheckStatus(ctx, record.TaskID)
		if err != nil {
			s.logger.Warn().Err(err).Str("task_id", record.TaskID).Msg("posting: статус недоступен, запись остаётся в очереди")
			continue
		}

		switch status {
		case domain.StatusApproved:
			metrics.VerificationResolved.WithLabelValues(s.verifier.Name(), string(status)).Inc()
			draft := domain.Draft{
				RoomID:     record.RoomID,
				Text:       record.TextForPosting,
				RawContent: record.RawContent,
			}
			if err := s.publish(ctx, draft); err != nil {
				s.logger.Error().Err(err).Str("task_id", record.TaskID).Msg("posting: публикация одобренного черновика не удалась")
			}
			// Решение принято: запись покидает очередь независимо от
			// исхода публикации, повторная попытка не делается.
			if err := s.pendings.Remove(ctx, record.TaskID); err != nil {
				s.logger.Warn().Err(err).Str("task_id", record.TaskID).Msg("posting: не удалось удалить обработанную запись")
			}
		case domain.StatusRejected:
			metrics.VerificationResolved.WithLabelValues(s.verifier.Name(), string(status)).Inc()
			s.logger.Info().Str("task_id", record.TaskID).Msg("posting: черновик отклонён")
			if err := s.pendings.Remove(ctx, record.TaskID); err != nil {
				s.logger.Warn().Err(err).Str("task_id", record.TaskID).Msg("posting: не удалось удалить отклонённую запись")
			}
		case domain.StatusPending:
			// Решения нет, запись остаётся до следующего прохода.
		}
	}
	return nil
}
