package recorder

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"x-persona-bot/internal/domain"
)

// Postgres сохраняет журнал опубликованных твитов в БД. Журнал
// вспомогательный: сбой записи не должен останавливать публикацию,
// решение об этом принимает вызывающая сторона.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ domain.RecordSink = (*Postgres)(nil)

// NewPostgres создаёт адаптер журнала.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// SaveRecord записывает факт публикации.
func (p *Postgres) SaveRecord(ctx context.Context, tweet domain.PostedTweet) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := p.pool.Exec(ctx, `
		INSERT INTO posted_tweets (tweet_id, text, url, source, posted_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tweet_id) DO NOTHING`,
		tweet.ID, tweet.Text, tweet.URL, tweet.Source, tweet.Timestamp)
	if err != nil {
		return fmt.Errorf("recorder: сохранение записи: %w", err)
	}
	return nil
}
