package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type countingPoster struct {
	posts      atomic.Int64
	mediaPosts atomic.Int64
	pendings   atomic.Int64
	postErr    error

	lastPost   time.Time
	lastPostOK bool
}

func (p *countingPoster) GenerateAndPost(context.Context) error {
	p.posts.Add(1)
	return p.postErr
}

func (p *countingPoster) GenerateMediaPost(context.Context) error {
	p.mediaPosts.Add(1)
	return nil
}

func (p *countingPoster) ProcessPending(context.Context) error {
	p.pendings.Add(1)
	return nil
}

func (p *countingPoster) LastPostAt() (time.Time, bool) {
	return p.lastPost, p.lastPostOK
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("условие не выполнилось за %s", timeout)
}

func TestPendingLoopTicks(t *testing.T) {
	poster := &countingPoster{}
	service := NewService(poster, zerolog.Nop(), Config{
		ApprovalEnabled: true,
		CheckInterval:   10 * time.Millisecond,
	})

	service.Start(context.Background())
	defer service.Stop()

	waitFor(t, time.Second, func() bool { return poster.pendings.Load() >= 2 })
}

func TestGenerationLoopRuns(t *testing.T) {
	poster := &countingPoster{}
	service := NewService(poster, zerolog.Nop(), Config{
		EnableGeneration: true,
		PostIntervalMin:  5 * time.Millisecond,
		PostIntervalMax:  10 * time.Millisecond,
	})

	service.Start(context.Background())
	defer service.Stop()

	waitFor(t, time.Second, func() bool { return poster.posts.Load() >= 2 })
}

func TestGenerationDisabled(t *testing.T) {
	poster := &countingPoster{}
	service := NewService(poster, zerolog.Nop(), Config{
		ApprovalEnabled: true,
		CheckInterval:   10 * time.Millisecond,
	})

	service.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	service.Stop()

	if poster.posts.Load() != 0 {
		t.Fatalf("при выключенной генерации постов быть не должно")
	}
}

func TestStopTerminatesLoops(t *testing.T) {
	poster := &countingPoster{}
	service := NewService(poster, zerolog.Nop(), Config{
		ApprovalEnabled: true,
		CheckInterval:   5 * time.Millisecond,
	})

	service.Start(context.Background())
	waitFor(t, time.Second, func() bool { return poster.pendings.Load() >= 1 })
	service.Stop()

	count := poster.pendings.Load()
	time.Sleep(30 * time.Millisecond)
	if poster.pendings.Load() != count {
		t.Fatalf("после Stop циклы должны остановиться")
	}
}

func TestGenerationErrorUsesBackoff(t *testing.T) {
	poster := &countingPoster{postErr: errors.New("сбой")}
	service := NewService(poster, zerolog.Nop(), Config{
		EnableGeneration: true,
		PostIntervalMin:  5 * time.Millisecond,
		PostIntervalMax:  5 * time.Millisecond,
	})

	service.Start(context.Background())
	defer service.Stop()

	// Первый цикл выполняется, после ошибки следующий откладывается
	// на большую паузу и за время теста не наступает.
	waitFor(t, time.Second, func() bool { return poster.posts.Load() == 1 })
	time.Sleep(50 * time.Millisecond)
	if poster.posts.Load() != 1 {
		t.Fatalf("после ошибки повтор должен ждать паузу")
	}
}

func TestInitialDelayHonorsLastPost(t *testing.T) {
	now := time.Now()
	interval := 100 * time.Millisecond

	// Отметки нет: полный интервал.
	poster := &countingPoster{}
	service := NewService(poster, zerolog.Nop(), Config{PostIntervalMin: interval, PostIntervalMax: interval})
	service.now = func() time.Time { return now }
	if got := service.initialDelay(); got != interval {
		t.Fatalf("без отметки ожидали полный интервал, получили %s", got)
	}

	// Пост был недавно: ждём остаток интервала.
	poster = &countingPoster{lastPost: now.Add(-40 * time.Millisecond), lastPostOK: true}
	service = NewService(poster, zerolog.Nop(), Config{PostIntervalMin: interval, PostIntervalMax: interval})
	service.now = func() time.Time { return now }
	if got := service.initialDelay(); got != 60*time.Millisecond {
		t.Fatalf("ожидали остаток 60ms, получили %s", got)
	}

	// Интервал давно истёк: короткая стартовая задержка.
	poster = &countingPoster{lastPost: now.Add(-time.Hour), lastPostOK: true}
	service = NewService(poster, zerolog.Nop(), Config{PostIntervalMin: interval, PostIntervalMax: interval})
	service.now = func() time.Time { return now }
	if got := service.initialDelay(); got != time.Minute {
		t.Fatalf("ожидали минутную задержку, получили %s", got)
	}
}

func TestRandIntervalBounds(t *testing.T) {
	min, max := 10*time.Millisecond, 20*time.Millisecond
	for i := 0; i < 100; i++ {
		got := randInterval(min, max)
		if got < min || got > max {
			t.Fatalf("интервал %s вне границ [%s, %s]", got, min, max)
		}
	}
	if got := randInterval(max, min); got != max {
		t.Fatalf("вырожденные границы должны давать min, получили %s", got)
	}
}
