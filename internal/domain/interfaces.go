package domain

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss возвращается кэшем, если ключ отсутствует.
var ErrCacheMiss = errors.New("ключ не найден в кэше")

// ErrBadResponse возвращается транспортом публикации, если удалённый вызов
// прошёл, но ответ не содержит ожидаемых полей. Такой черновик отбрасывается:
// повтор искажённого ответа сам собой не исправится.
var ErrBadResponse = errors.New("некорректная структура ответа")

// ErrEmptyGeneration возвращается генератором при пустом ответе провайдера.
var ErrEmptyGeneration = errors.New("провайдер вернул пустой текст")

// TextGenerator строит черновик поста из контекста персоны.
type TextGenerator interface {
	GenerateDraft(ctx context.Context, kind DraftKind) (Draft, error)
}

// MediaLibrary выбирает случайные медиафайлы из настроенной папки.
type MediaLibrary interface {
	SelectRandom(count int) ([]MediaAsset, error)
	// Load читает бинарное содержимое файла перед публикацией.
	Load(asset *MediaAsset) error
}

// Verifier внешний механизм одобрения черновиков. Ровно один активен
// одновременно; выбирается конфигурацией при создании.
type Verifier interface {
	// Submit отправляет черновик на проверку. Ожидаемые сбои (нет
	// конфигурации, сервис недоступен) возвращаются ошибкой; паник нет.
	Submit(ctx context.Context, draft Draft) (SubmitResult, error)
	// CheckStatus идемпотентна и не имеет побочных эффектов.
	// «Задача не найдена» у бэкенда трактуется как REJECTED.
	CheckStatus(ctx context.Context, taskID string) (VerificationStatus, error)
	// Name имя провайдера для логов и метрик.
	Name() string
	Close() error
}

// PendingStore durable-список черновиков, ожидающих верификации.
type PendingStore interface {
	Add(ctx context.Context, record PendingApproval) error
	List(ctx context.Context) ([]PendingApproval, error)
	Remove(ctx context.Context, taskID string) error
}

// Publisher транспорт публикации постов.
type Publisher interface {
	// SendTweet публикует обычный пост.
	SendTweet(ctx context.Context, text string, media []MediaAsset) (PostedTweet, error)
	// SendNoteTweet публикует длинный пост; при ошибке авторизации
	// транспорт сам откатывается на обычный пост с усечённым текстом.
	SendNoteTweet(ctx context.Context, text string, media []MediaAsset) (PostedTweet, error)
}

// RecordSink сохраняет запись об опубликованном посте. Вызов
// fire-and-forget: ошибка логируется и не повторяется.
type RecordSink interface {
	SaveRecord(ctx context.Context, record PostedTweet) error
}

// Notifier уведомляет оператора о событиях пайплайна.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Cache простое durable key-value хранилище.
type Cache interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
}
