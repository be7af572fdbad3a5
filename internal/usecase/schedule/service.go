package schedule

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// errBackoff пауза перед повтором после неудачного цикла.
const errBackoff = 5 * time.Minute

// mediaStartDelay задержка первого медиацикла после старта.
const mediaStartDelay = 30 * time.Second

// Poster операции пайплайна публикации, которые запускает планировщик.
type Poster interface {
	GenerateAndPost(ctx context.Context) error
	GenerateMediaPost(ctx context.Context) error
	ProcessPending(ctx context.Context) error
	LastPostAt() (time.Time, bool)
}

// Config интервалы планировщика.
type Config struct {
	EnableGeneration bool
	PostIntervalMin  time.Duration
	PostIntervalMax  time.Duration

	ApprovalEnabled bool
	CheckInterval   time.Duration

	MediaEnabled     bool
	MediaIntervalMin time.Duration
	MediaIntervalMax time.Duration
}

// Service ведёт три независимых цикла: генерацию постов со случайным
// интервалом, обработку очереди верификации с фиксированным шагом и
// медиапосты. Каждый цикл живёт в своей горутине до остановки.
type Service struct {
	poster Poster
	logger zerolog.Logger
	cfg    Config

	now func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService создаёт планировщик.
func NewService(poster Poster, logger zerolog.Logger, cfg Config) *Service {
	return &Service{poster: poster, logger: logger, cfg: cfg, now: time.Now}
}

// Start запускает циклы. Повторный вызов без Stop не поддерживается.
func (s *Service) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	if s.cfg.EnableGeneration {
		s.wg.Add(1)
		go s.generationLoop(ctx)
	} else {
		s.logger.Info().Msg("schedule: генерация постов выключена")
	}

	if s.cfg.ApprovalEnabled {
		s.wg.Add(1)
		go s.pendingLoop(ctx)
	}

	if s.cfg.MediaEnabled {
		s.wg.Add(1)
		go s.mediaLoop(ctx)
	}
}

// Stop останавливает циклы и дожидается их завершения.
func (s *Service) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

// generationLoop публикует посты со случайным интервалом. Первый запуск
// учитывает отметку последней публикации, чтобы рестарт процесса не
// ломал расписание.
func (s *Service) generationLoop(ctx context.Context) {
	defer s.wg.Done()

	delay := s.initialDelay()
	s.logger.Info().Dur("delay", delay).Msg("schedule: следующий пост запланирован")

	timer := time.NewTimer(delay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			next := randInterval(s.cfg.PostIntervalMin, s.cfg.PostIntervalMax)
			if err := s.poster.GenerateAndPost(ctx); err != nil {
				s.logger.Error().Err(err).Msg("schedule: цикл публикации не удался")
				next = errBackoff
			}
			s.logger.Info().Dur("delay", next).Msg("schedule: следующий пост запланирован")
			timer.Reset(next)
		}
	}
}

func (s *Service) pendingLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.poster.ProcessPending(ctx); err != nil {
				s.logger.Error().Err(err).Msg("schedule: обработка очереди верификации не удалась")
			}
		}
	}
}

func (s *Service) mediaLoop(ctx context.Context) {
	defer s.wg.Done()

	timer := time.NewTimer(mediaStartDelay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			next := randInterval(s.cfg.MediaIntervalMin, s.cfg.MediaIntervalMax)
			if err := s.poster.GenerateMediaPost(ctx); err != nil {
				s.logger.Error().Err(err).Msg("schedule: медиацикл не удался")
				next = errBackoff
			}
			timer.Reset(next)
		}
	}
}

// initialDelay вычисляет задержку первого поста: остаток интервала от
// последней публикации, либо полный интервал, если отметки нет.
func (s *Service) initialDelay() time.Duration {
	interval := randInterval(s.cfg.PostIntervalMin, s.cfg.PostIntervalMax)
	last, ok := s.poster.LastPostAt()
	if !ok {
		return interval
	}
	elapsed := s.now().Sub(last)
	if elapsed >= interval {
		return time.Minute
	}
	return interval - elapsed
}

// randInterval равномерно выбирает длительность из [min, max].
func randInterval(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)+1))
}
