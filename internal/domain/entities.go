package domain

import "time"

// MediaType определяет тип вложения по расширению файла.
type MediaType string

const (
	// MediaImage статичное изображение.
	MediaImage MediaType = "image"
	// MediaVideo видеоролик.
	MediaVideo MediaType = "video"
)

// MediaAsset описывает медиафайл, прикрепляемый к посту.
// Бинарное содержимое загружается лениво, непосредственно перед публикацией.
type MediaAsset struct {
	Path string
	Type MediaType
	MIME string
	Data []byte
}

// DraftKind различает обычный текстовый пост и подпись к медиапосту.
type DraftKind string

const (
	// DraftText обычный текстовый пост.
	DraftText DraftKind = "text"
	// DraftMedia подпись к медиапосту.
	DraftMedia DraftKind = "media"
)

// Draft представляет сгенерированный, но ещё не опубликованный пост.
type Draft struct {
	ID         string
	RoomID     string
	Text       string
	RawContent string
	Media      []MediaAsset
	CreatedAt  time.Time
}

// PendingApproval хранит черновик, ожидающий решения верификации.
// Запись неизменяема: создаётся при отправке на проверку и удаляется
// после решения либо по истечении срока.
type PendingApproval struct {
	TextForPosting string `json:"textForPosting"`
	RoomID         string `json:"roomId"`
	RawContent     string `json:"rawContent"`
	TaskID         string `json:"taskId"`
	Timestamp      int64  `json:"timestamp"`
}

// Age возвращает возраст записи относительно указанного момента.
func (p PendingApproval) Age(now time.Time) time.Duration {
	return now.Sub(time.UnixMilli(p.Timestamp))
}

// PendingTTL максимальный срок ожидания решения по черновику.
const PendingTTL = 24 * time.Hour

// VerificationStatus результат проверки черновика провайдером.
type VerificationStatus string

const (
	// StatusPending решение ещё не принято.
	StatusPending VerificationStatus = "PENDING"
	// StatusApproved черновик одобрен.
	StatusApproved VerificationStatus = "APPROVED"
	// StatusRejected черновик отклонён.
	StatusRejected VerificationStatus = "REJECTED"
)

// SubmitResult итог отправки черновика на верификацию.
// DirectPosted означает, что провайдер уже опубликовал пост сам
// (fallback при недоступной верификации) и публиковать повторно нельзя.
type SubmitResult struct {
	TaskID       string
	DirectPosted bool
}

// PostedTweet нормализованная запись об опубликованном посте.
type PostedTweet struct {
	ID        string
	Text      string
	URL       string
	Source    string
	Timestamp time.Time
}

// LastPost кэшируемая отметка о последней публикации.
type LastPost struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp"`
}

// Persona описывает персонажа, от лица которого пишутся посты.
type Persona struct {
	Name         string   `json:"name"`
	Username     string   `json:"username"`
	Bio          []string `json:"bio"`
	Topics       []string `json:"topics"`
	Adjectives   []string `json:"adjectives"`
	Style        []string `json:"style"`
	PostExamples []string `json:"postExamples"`
}
