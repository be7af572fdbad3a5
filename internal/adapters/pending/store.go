package pending

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"x-persona-bot/internal/domain"
)

// ErrDuplicateTask возвращается при попытке добавить запись с уже
// существующим taskId: на один taskId допускается одно решение.
var ErrDuplicateTask = errors.New("черновик с таким taskId уже ожидает решения")

// Store хранит очередь черновиков в durable-кэше одним JSON-списком,
// по ключу на каждую публикующую учётку.
type Store struct {
	cache domain.Cache
	key   string
}

var _ domain.PendingStore = (*Store)(nil)

// NewStore создаёт хранилище для указанного имени пользователя.
func NewStore(cache domain.Cache, username string) *Store {
	return &Store{cache: cache, key: fmt.Sprintf("twitter/%s/pendingTweets", username)}
}

// Add добавляет запись в конец списка.
func (s *Store) Add(ctx context.Context, record domain.PendingApproval) error {
	records, err := s.load()
	if err != nil {
		return err
	}
	for _, existing := range records {
		if existing.TaskID == record.TaskID {
			return ErrDuplicateTask
		}
	}
	records = append(records, record)
	return s.save(records)
}

// List возвращает все ожидающие записи; отсутствующий ключ — пустой список.
func (s *Store) List(ctx context.Context) ([]domain.PendingApproval, error) {
	return s.load()
}

// Remove удаляет запись по taskId. Когда удалена последняя запись,
// ключ стирается целиком, а не хранится пустой список.
func (s *Store) Remove(ctx context.Context, taskID string) error {
	records, err := s.load()
	if err != nil {
		return err
	}
	kept := records[:0]
	for _, record := range records {
		if record.TaskID != taskID {
			kept = append(kept, record)
		}
	}
	if len(kept) == 0 {
		return s.cache.Delete(s.key)
	}
	return s.save(kept)
}

func (s *Store) load() ([]domain.PendingApproval, error) {
	raw, err := s.cache.Get(s.key)
	if errors.Is(err, domain.ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("чтение очереди черновиков: %w", err)
	}
	var records []domain.PendingApproval
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("разбор очереди черновиков: %w", err)
	}
	return records, nil
}

func (s *Store) save(records []domain.PendingApproval) error {
	raw, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("сериализация очереди черновиков: %w", err)
	}
	if err := s.cache.Set(s.key, raw, 0); err != nil {
		return fmt.Errorf("запись очереди черновиков: %w", err)
	}
	return nil
}
