package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"x-persona-bot/internal/domain"
	"x-persona-bot/internal/infra/metrics"
)

const discordAPIBase = "https://discord.com/api/v10"

const (
	approveEmoji = "👍"
	rejectEmoji  = "❌"
)

// Discord реализует верификацию через реакции в канале Discord.
// Статус вычисляется подсчётом реакций сверх реакции самого бота.
// При одновременном наборе обеих реакций побеждает отклонение:
// отказ проверяется первым.
type Discord struct {
	http      *http.Client
	baseURL   string
	token     string
	channelID string
	username  string
	logger    zerolog.Logger
	opts      Options
}

var _ domain.Verifier = (*Discord)(nil)

// NewDiscord создаёт провайдера. Отсутствующий токен или канал —
// ошибка конфигурации, провайдер не создаётся.
func NewDiscord(token, channelID, username string, logger zerolog.Logger, opts Options) (*Discord, error) {
	if token == "" || channelID == "" {
		return nil, errors.New("discord: не заданы токен бота или id канала")
	}
	return &Discord{
		http:      &http.Client{Timeout: 15 * time.Second},
		baseURL:   discordAPIBase,
		token:     token,
		channelID: channelID,
		username:  username,
		logger:    logger,
		opts:      opts,
	}, nil
}

// Name возвращает имя провайдера.
func (d *Discord) Name() string { return ProviderDiscord }

// Close ничего не делает: клиент работает поверх REST без постоянного
// соединения.
func (d *Discord) Close() error { return nil }

type discordEmbed struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Fields      []discordEmbedField `json:"fields,omitempty"`
	Footer      *discordEmbedFooter `json:"footer,omitempty"`
	Color       int                 `json:"color,omitempty"`
}

type discordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type discordEmbedFooter struct {
	Text string `json:"text"`
}

type discordMessage struct {
	ID        string            `json:"id"`
	Reactions []discordReaction `json:"reactions"`
}

type discordReaction struct {
	Emoji struct {
		Name string `json:"name"`
	} `json:"emoji"`
	Count int  `json:"count"`
	Me    bool `json:"me"`
}

// Submit публикует сообщение с черновиком в канал согласования и
// проставляет реакции-кнопки. TaskID — идентификатор сообщения.
func (d *Discord) Submit(ctx context.Context, draft domain.Draft) (domain.SubmitResult, error) {
	embed := discordEmbed{
		Title:       "Новый пост ждёт согласования",
		Description: draft.Text,
		Fields: []discordEmbedField{
			{Name: "Аккаунт", Value: "@" + d.username, Inline: true},
			{Name: "Длина", Value: fmt.Sprintf("%d", len([]rune(draft.Text))), Inline: true},
		},
		Footer: &discordEmbedFooter{
			Text: fmt.Sprintf("Реакция %s — одобрить, %s — отклонить. Без решения запись истечёт через 24 часа.", approveEmoji, rejectEmoji),
		},
		Color: 0x1DA1F2,
	}

	body, err := json.Marshal(map[string]any{"embeds": []discordEmbed{embed}})
	if err != nil {
		return domain.SubmitResult{}, fmt.Errorf("discord: сериализация сообщения: %w", err)
	}

	var message discordMessage
	endpoint := fmt.Sprintf("%s/channels/%s/messages", d.baseURL, d.channelID)
	if err := d.do(ctx, http.MethodPost, endpoint, "create_message", body, &message); err != nil {
		return d.fallback(ctx, draft, fmt.Errorf("discord: отправка сообщения: %w", err))
	}
	if message.ID == "" {
		return d.fallback(ctx, draft, errors.New("discord: ответ без id сообщения"))
	}

	for _, emoji := range []string{approveEmoji, rejectEmoji} {
		reactionURL := fmt.Sprintf("%s/channels/%s/messages/%s/reactions/%s/@me",
			d.baseURL, d.channelID, message.ID, url.PathEscape(emoji))
		if err := d.do(ctx, http.MethodPut, reactionURL, "add_reaction", nil, nil); err != nil {
			d.logger.Warn().Err(err).Str("emoji", emoji).Msg("discord: не удалось проставить реакцию")
		}
	}

	d.logger.Info().Str("message_id", message.ID).Msg("discord: черновик отправлен на согласование")
	return domain.SubmitResult{TaskID: message.ID}, nil
}

// CheckStatus перечитывает сообщение и считает реакции. Идемпотентна.
// Удалённое сообщение (404) трактуется как отклонение.
func (d *Discord) CheckStatus(ctx context.Context, taskID string) (domain.VerificationStatus, error) {
	endpoint := fmt.Sprintf("%s/channels/%s/messages/%s", d.baseURL, d.channelID, taskID)

	var message discordMessage
	if err := d.do(ctx, http.MethodGet, endpoint, "fetch_message", nil, &message); err != nil {
		var httpErr *discordHTTPError
		if errors.As(err, &httpErr) && httpErr.Status == http.StatusNotFound {
			return domain.StatusRejected, nil
		}
		return domain.StatusPending, fmt.Errorf("discord: чтение сообщения: %w", err)
	}

	// Сначала отклонение: при обеих реакциях побеждает отказ.
	if humanReacted(message.Reactions, rejectEmoji) {
		return domain.StatusRejected, nil
	}
	if humanReacted(message.Reactions, approveEmoji) {
		return domain.StatusApproved, nil
	}
	return domain.StatusPending, nil
}

// humanReacted проверяет, что по эмодзи есть реакции сверх реакции бота.
func humanReacted(reactions []discordReaction, emoji string) bool {
	for _, r := range reactions {
		if r.Emoji.Name != emoji {
			continue
		}
		threshold := 0
		if r.Me {
			threshold = 1
		}
		return r.Count > threshold
	}
	return false
}

func (d *Discord) fallback(ctx context.Context, draft domain.Draft, cause error) (domain.SubmitResult, error) {
	if !d.opts.DirectFallback || d.opts.DirectPost == nil {
		return domain.SubmitResult{}, cause
	}
	d.logger.Warn().Err(cause).Msg("discord: верификация недоступна, публикуем напрямую")
	if err := d.opts.DirectPost(ctx, draft); err != nil {
		return domain.SubmitResult{}, fmt.Errorf("discord: прямая публикация после сбоя: %w", err)
	}
	return domain.SubmitResult{DirectPosted: true}, nil
}

type discordHTTPError struct {
	Status int
	Body   string
}

func (e *discordHTTPError) Error() string {
	return fmt.Sprintf("discord: статус %d: %s", e.Status, e.Body)
}

func (d *Discord) do(ctx context.Context, method, endpoint, operation string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("создание запроса: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+d.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := d.http.Do(req)
	metrics.ObserveNetworkRequest("discord", operation, d.channelID, start, err)
	if err != nil {
		return fmt.Errorf("выполнение запроса: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &discordHTTPError{Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("разбор ответа: %w", err)
		}
	}
	return nil
}
