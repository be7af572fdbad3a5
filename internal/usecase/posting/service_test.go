package posting

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"x-persona-bot/internal/domain"
)

type fakeGenerator struct {
	draft domain.Draft
	err   error
	calls int
}

func (f *fakeGenerator) GenerateDraft(_ context.Context, kind domain.DraftKind) (domain.Draft, error) {
	f.calls++
	if f.err != nil {
		return domain.Draft{}, f.err
	}
	draft := f.draft
	if draft.Text == "" {
		draft.Text = "сгенерированный пост"
	}
	return draft, nil
}

type fakeMedia struct {
	assets []domain.MediaAsset
	loaded int
}

func (f *fakeMedia) SelectRandom(count int) ([]domain.MediaAsset, error) {
	if count > len(f.assets) {
		count = len(f.assets)
	}
	return f.assets[:count], nil
}

func (f *fakeMedia) Load(asset *domain.MediaAsset) error {
	f.loaded++
	asset.Data = []byte("payload")
	return nil
}

type fakePublisher struct {
	tweets  []string
	notes   []string
	err     error
	lastIdx int
}

func (f *fakePublisher) SendTweet(_ context.Context, text string, _ []domain.MediaAsset) (domain.PostedTweet, error) {
	if f.err != nil {
		return domain.PostedTweet{}, f.err
	}
	f.tweets = append(f.tweets, text)
	f.lastIdx++
	return domain.PostedTweet{ID: fmt.Sprintf("id-%d", f.lastIdx), Text: text, Source: "standard", Timestamp: time.Now()}, nil
}

func (f *fakePublisher) SendNoteTweet(_ context.Context, text string, _ []domain.MediaAsset) (domain.PostedTweet, error) {
	if f.err != nil {
		return domain.PostedTweet{}, f.err
	}
	f.notes = append(f.notes, text)
	f.lastIdx++
	return domain.PostedTweet{ID: fmt.Sprintf("id-%d", f.lastIdx), Text: text, Source: "note", Timestamp: time.Now()}, nil
}

type fakeVerifier struct {
	result       domain.SubmitResult
	submitErr    error
	statuses     map[string]domain.VerificationStatus
	statusErr    error
	statusChecks int
}

func (f *fakeVerifier) Submit(_ context.Context, _ domain.Draft) (domain.SubmitResult, error) {
	if f.submitErr != nil {
		return domain.SubmitResult{}, f.submitErr
	}
	return f.result, nil
}

func (f *fakeVerifier) CheckStatus(_ context.Context, taskID string) (domain.VerificationStatus, error) {
	f.statusChecks++
	if f.statusErr != nil {
		return domain.StatusPending, f.statusErr
	}
	if status, ok := f.statuses[taskID]; ok {
		return status, nil
	}
	return domain.StatusPending, nil
}

func (f *fakeVerifier) Name() string { return "FAKE" }
func (f *fakeVerifier) Close() error { return nil }

type fakePending struct {
	records []domain.PendingApproval
}

func (f *fakePending) Add(_ context.Context, record domain.PendingApproval) error {
	f.records = append(f.records, record)
	return nil
}

func (f *fakePending) List(_ context.Context) ([]domain.PendingApproval, error) {
	return append([]domain.PendingApproval(nil), f.records...), nil
}

func (f *fakePending) Remove(_ context.Context, taskID string) error {
	kept := f.records[:0]
	for _, record := range f.records {
		if record.TaskID != taskID {
			kept = append(kept, record)
		}
	}
	f.records = kept
	return nil
}

type fakeCache struct {
	data map[string][]byte
}

func newFakeCache() *fakeCache { return &fakeCache{data: map[string][]byte{}} }

func (f *fakeCache) Get(key string) ([]byte, error) {
	value, ok := f.data[key]
	if !ok {
		return nil, domain.ErrCacheMiss
	}
	return value, nil
}

func (f *fakeCache) Set(key string, value []byte, _ time.Duration) error {
	f.data[key] = value
	return nil
}

func (f *fakeCache) Delete(key string) error {
	delete(f.data, key)
	return nil
}

type fakeSink struct {
	saved []domain.PostedTweet
}

func (f *fakeSink) SaveRecord(_ context.Context, record domain.PostedTweet) error {
	f.saved = append(f.saved, record)
	return nil
}

type fakeNotifier struct {
	messages []string
}

func (f *fakeNotifier) Notify(_ context.Context, text string) error {
	f.messages = append(f.messages, text)
	return nil
}

type env struct {
	generator *fakeGenerator
	media     *fakeMedia
	publisher *fakePublisher
	verifier  *fakeVerifier
	pendings  *fakePending
	sink      *fakeSink
	notifier  *fakeNotifier
	cache     *fakeCache
	service   *Service
}

func newEnv(cfg Config) *env {
	e := &env{
		generator: &fakeGenerator{},
		media:     &fakeMedia{},
		publisher: &fakePublisher{},
		verifier:  &fakeVerifier{result: domain.SubmitResult{TaskID: "task-1"}, statuses: map[string]domain.VerificationStatus{}},
		pendings:  &fakePending{},
		sink:      &fakeSink{},
		notifier:  &fakeNotifier{},
		cache:     newFakeCache(),
	}
	if cfg.Username == "" {
		cfg.Username = "holly"
	}
	if cfg.MaxTweetLength == 0 {
		cfg.MaxTweetLength = 280
	}
	e.service = NewService(e.generator, e.media, e.publisher, e.verifier, e.pendings, e.sink, e.notifier, e.cache, zerolog.Nop(), cfg)
	return e
}

func TestGenerateAndPostWithoutApproval(t *testing.T) {
	e := newEnv(Config{})
	if err := e.service.GenerateAndPost(context.Background()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(e.publisher.tweets) != 1 {
		t.Fatalf("ожидали одну публикацию, получили %d", len(e.publisher.tweets))
	}
	if len(e.sink.saved) != 1 {
		t.Fatalf("журнал публикаций пуст")
	}
	if len(e.notifier.messages) != 1 {
		t.Fatalf("оператор не уведомлён")
	}
	if _, ok := e.service.LastPostAt(); !ok {
		t.Fatalf("отметка последнего поста не сохранена")
	}
	if len(e.pendings.records) != 0 {
		t.Fatalf("без верификации очередь должна быть пустой")
	}
}

func TestGenerateAndPostDryRun(t *testing.T) {
	e := newEnv(Config{DryRun: true, ApprovalEnabled: true})
	if err := e.service.GenerateAndPost(context.Background()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if e.generator.calls != 1 {
		t.Fatalf("генерация должна выполняться и в dry-run")
	}
	if len(e.publisher.tweets)+len(e.publisher.notes) != 0 {
		t.Fatalf("dry-run не должен публиковать")
	}
	if len(e.pendings.records) != 0 {
		t.Fatalf("dry-run не должен писать в очередь верификации")
	}
}

func TestGenerateAndPostSubmitsForApproval(t *testing.T) {
	e := newEnv(Config{ApprovalEnabled: true})
	if err := e.service.GenerateAndPost(context.Background()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(e.publisher.tweets) != 0 {
		t.Fatalf("до одобрения публикации быть не должно")
	}
	if len(e.pendings.records) != 1 || e.pendings.records[0].TaskID != "task-1" {
		t.Fatalf("запись не попала в очередь: %+v", e.pendings.records)
	}
	if e.pendings.records[0].TextForPosting == "" {
		t.Fatalf("запись без текста")
	}
}

func TestGenerateAndPostDirectPosted(t *testing.T) {
	e := newEnv(Config{ApprovalEnabled: true})
	e.verifier.result = domain.SubmitResult{DirectPosted: true}
	if err := e.service.GenerateAndPost(context.Background()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(e.pendings.records) != 0 {
		t.Fatalf("прямая публикация не должна попадать в очередь")
	}
}

func TestGenerateAndPostGenerationError(t *testing.T) {
	e := newEnv(Config{})
	e.generator.err = domain.ErrEmptyGeneration
	if err := e.service.GenerateAndPost(context.Background()); !errors.Is(err, domain.ErrEmptyGeneration) {
		t.Fatalf("ожидали ErrEmptyGeneration, получили %v", err)
	}
	if len(e.publisher.tweets) != 0 {
		t.Fatalf("при ошибке генерации публикации быть не должно")
	}
}

func TestBusyCycleSkipped(t *testing.T) {
	e := newEnv(Config{})
	e.service.busy.Store(true)
	if err := e.service.GenerateAndPost(context.Background()); err != nil {
		t.Fatalf("занятый цикл должен пропускаться без ошибки: %v", err)
	}
	if e.generator.calls != 0 {
		t.Fatalf("совпавший тик не должен запускать генерацию")
	}
}

func TestLongTextGoesToNoteTweet(t *testing.T) {
	e := newEnv(Config{MaxTweetLength: 20})
	e.generator.draft = domain.Draft{Text: "Этот текст заведомо длиннее двадцати символов."}
	if err := e.service.GenerateAndPost(context.Background()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(e.publisher.notes) != 1 || len(e.publisher.tweets) != 0 {
		t.Fatalf("длинный текст должен идти длинным постом: notes=%d tweets=%d", len(e.publisher.notes), len(e.publisher.tweets))
	}
}

func TestPublishErrorDiscardsDraft(t *testing.T) {
	e := newEnv(Config{})
	e.publisher.err = fmt.Errorf("ответ: %w", domain.ErrBadResponse)
	if err := e.service.GenerateAndPost(context.Background()); !errors.Is(err, domain.ErrBadResponse) {
		t.Fatalf("ожидали ErrBadResponse, получили %v", err)
	}
	if len(e.sink.saved) != 0 || len(e.notifier.messages) != 0 {
		t.Fatalf("неудачная публикация не должна оставлять следов")
	}
}

func TestMediaPostAndAlternation(t *testing.T) {
	e := newEnv(Config{})
	e.media.assets = []domain.MediaAsset{{Path: "cat.jpg", Type: domain.MediaImage, MIME: "image/jpeg"}}

	if err := e.service.GenerateMediaPost(context.Background()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(e.publisher.tweets) != 1 {
		t.Fatalf("медиапост не опубликован")
	}
	if e.media.loaded != 1 {
		t.Fatalf("медиафайл должен быть загружен перед публикацией")
	}

	// Сразу за медиапостом второй не публикуется.
	if err := e.service.GenerateMediaPost(context.Background()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(e.publisher.tweets) != 1 {
		t.Fatalf("два медиапоста подряд публиковаться не должны")
	}

	// Текстовый пост сбрасывает признак, медиацикл снова доступен.
	if err := e.service.GenerateAndPost(context.Background()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if err := e.service.GenerateMediaPost(context.Background()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(e.publisher.tweets) != 3 {
		t.Fatalf("ожидали три публикации, получили %d", len(e.publisher.tweets))
	}
}

func TestMediaPostEmptyLibrary(t *testing.T) {
	e := newEnv(Config{})
	if err := e.service.GenerateMediaPost(context.Background()); err != nil {
		t.Fatalf("пустая библиотека не должна быть ошибкой: %v", err)
	}
	if e.generator.calls != 0 {
		t.Fatalf("без медиа генерация подписи не нужна")
	}
}

func pendingRecord(taskID string, age time.Duration, now time.Time) domain.PendingApproval {
	return domain.PendingApproval{
		TextForPosting: "одобренный текст",
		RoomID:         "room-1",
		TaskID:         taskID,
		Timestamp:      now.Add(-age).UnixMilli(),
	}
}

func TestProcessPendingApproved(t *testing.T) {
	e := newEnv(Config{ApprovalEnabled: true})
	now := time.Now()
	e.service.now = func() time.Time { return now }
	e.pendings.records = []domain.PendingApproval{pendingRecord("task-1", time.Hour, now)}
	e.verifier.statuses["task-1"] = domain.StatusApproved

	if err := e.service.ProcessPending(context.Background()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(e.publisher.tweets) != 1 || e.publisher.tweets[0] != "одобренный текст" {
		t.Fatalf("одобренный черновик должен публиковаться: %+v", e.publisher.tweets)
	}
	if len(e.pendings.records) != 0 {
		t.Fatalf("обработанная запись должна покинуть очередь")
	}
}

func TestProcessPendingRejected(t *testing.T) {
	e := newEnv(Config{ApprovalEnabled: true})
	now := time.Now()
	e.service.now = func() time.Time { return now }
	e.pendings.records = []domain.PendingApproval{pendingRecord("task-1", time.Hour, now)}
	e.verifier.statuses["task-1"] = domain.StatusRejected

	if err := e.service.ProcessPending(context.Background()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(e.publisher.tweets) != 0 {
		t.Fatalf("отклонённый черновик публиковаться не должен")
	}
	if len(e.pendings.records) != 0 {
		t.Fatalf("отклонённая запись должна покинуть очередь")
	}
}

func TestProcessPendingExpiredSkipsStatusCheck(t *testing.T) {
	e := newEnv(Config{ApprovalEnabled: true})
	now := time.Now()
	e.service.now = func() time.Time { return now }
	e.pendings.records = []domain.PendingApproval{pendingRecord("task-1", domain.PendingTTL+time.Minute, now)}

	if err := e.service.ProcessPending(context.Background()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if e.verifier.statusChecks != 0 {
		t.Fatalf("статус просроченной записи запрашиваться не должен")
	}
	if len(e.pendings.records) != 0 {
		t.Fatalf("просроченная запись должна быть удалена")
	}
	if len(e.publisher.tweets) != 0 {
		t.Fatalf("просроченная запись публиковаться не должна")
	}
}

func TestProcessPendingExpiredLogsWarning(t *testing.T) {
	e := newEnv(Config{ApprovalEnabled: true})
	var buf bytes.Buffer
	e.service.logger = zerolog.New(&buf)
	now := time.Now()
	e.service.now = func() time.Time { return now }
	e.pendings.records = []domain.PendingApproval{pendingRecord("task-1", domain.PendingTTL+time.Minute, now)}

	if err := e.service.ProcessPending(context.Background()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !strings.Contains(buf.String(), `"level":"warn"`) || !strings.Contains(buf.String(), "просрочена") {
		t.Fatalf("просроченная запись должна логироваться предупреждением: %s", buf.String())
	}
}

func TestProcessPendingStatusErrorKeepsRecord(t *testing.T) {
	e := newEnv(Config{ApprovalEnabled: true})
	now := time.Now()
	e.service.now = func() time.Time { return now }
	e.pendings.records = []domain.PendingApproval{pendingRecord("task-1", time.Hour, now)}
	e.verifier.statusErr = errors.New("сервис недоступен")

	if err := e.service.ProcessPending(context.Background()); err != nil {
		t.Fatalf("ошибка статуса одного таска не должна валить проход: %v", err)
	}
	if len(e.pendings.records) != 1 {
		t.Fatalf("при ошибке статуса запись остаётся в очереди")
	}
}

func TestProcessPendingStillPending(t *testing.T) {
	e := newEnv(Config{ApprovalEnabled: true})
	now := time.Now()
	e.service.now = func() time.Time { return now }
	e.pendings.records = []domain.PendingApproval{pendingRecord("task-1", time.Hour, now)}

	if err := e.service.ProcessPending(context.Background()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(e.pendings.records) != 1 {
		t.Fatalf("запись без решения остаётся в очереди")
	}
}

func TestProcessPendingDisabledApproval(t *testing.T) {
	e := newEnv(Config{})
	e.pendings.records = []domain.PendingApproval{pendingRecord("task-1", time.Hour, time.Now())}
	if err := e.service.ProcessPending(context.Background()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if e.verifier.statusChecks != 0 {
		t.Fatalf("при выключенной верификации очередь не обрабатывается")
	}
}
