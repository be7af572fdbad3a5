package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"x-persona-bot/internal/domain"
	"x-persona-bot/internal/infra/metrics"
)

const raiinmakerDefaultBaseURL = "https://api.raiinmaker.com"

// Число голосов консенсуса для одного черновика.
const consensusVotes = 3

// Raiinmaker реализует верификацию через консенсусные задачи
// сервиса Raiinmaker: создаётся задача с вопросом «да/нет», статус
// вычисляется по завершённости задачи и её ответу.
type Raiinmaker struct {
	http     *http.Client
	baseURL  string
	appID    string
	apiKey   string
	username string
	logger   zerolog.Logger
	opts     Options
}

var _ domain.Verifier = (*Raiinmaker)(nil)

// NewRaiinmaker создаёт провайдера. Отсутствующие учётные данные —
// ошибка конфигурации.
func NewRaiinmaker(baseURL, appID, apiKey, username string, logger zerolog.Logger, opts Options) (*Raiinmaker, error) {
	if appID == "" || apiKey == "" {
		return nil, errors.New("raiinmaker: не заданы appId или apiKey")
	}
	if baseURL == "" {
		baseURL = raiinmakerDefaultBaseURL
	}
	return &Raiinmaker{
		http:     &http.Client{Timeout: 15 * time.Second},
		baseURL:  strings.TrimRight(baseURL, "/"),
		appID:    appID,
		apiKey:   apiKey,
		username: username,
		logger:   logger,
		opts:     opts,
	}, nil
}

// Name возвращает имя провайдера.
func (r *Raiinmaker) Name() string { return ProviderRaiinmaker }

// Close ничего не делает.
func (r *Raiinmaker) Close() error { return nil }

type raiinmakerTask struct {
	TaskID string `json:"taskId"`
	Status string `json:"status"`
	Answer string `json:"answer"`
}

type raiinmakerResponse struct {
	TaskID string          `json:"taskId"`
	Data   *raiinmakerTask `json:"data"`
}

func (resp raiinmakerResponse) task() raiinmakerTask {
	if resp.Data != nil {
		task := *resp.Data
		if task.TaskID == "" {
			task.TaskID = resp.TaskID
		}
		return task
	}
	return raiinmakerTask{TaskID: resp.TaskID}
}

// Submit создаёт консенсусную задачу по тексту черновика.
func (r *Raiinmaker) Submit(ctx context.Context, draft domain.Draft) (domain.SubmitResult, error) {
	payload := map[string]any{
		"subject":        draft.Text,
		"name":           fmt.Sprintf("Tweet Verification from @%s", r.username),
		"consensusVotes": consensusVotes,
		"question":       "Is this content appropriate for posting on Twitter?",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.SubmitResult{}, fmt.Errorf("raiinmaker: сериализация задачи: %w", err)
	}

	var resp raiinmakerResponse
	if err := r.do(ctx, http.MethodPost, r.baseURL+"/api/v1/tasks", "create_task", body, &resp); err != nil {
		return r.fallback(ctx, draft, fmt.Errorf("raiinmaker: создание задачи: %w", err))
	}
	task := resp.task()
	if task.TaskID == "" {
		return r.fallback(ctx, draft, errors.New("raiinmaker: ответ без taskId"))
	}

	r.logger.Info().Str("task_id", task.TaskID).Msg("raiinmaker: черновик отправлен на консенсус")
	return domain.SubmitResult{TaskID: task.TaskID}, nil
}

// CheckStatus читает задачу по id. Идемпотентна; 404 трактуется как
// отклонение.
func (r *Raiinmaker) CheckStatus(ctx context.Context, taskID string) (domain.VerificationStatus, error) {
	var resp raiinmakerResponse
	endpoint := fmt.Sprintf("%s/api/v1/tasks/%s", r.baseURL, taskID)
	if err := r.do(ctx, http.MethodGet, endpoint, "fetch_task", nil, &resp); err != nil {
		var httpErr *raiinmakerHTTPError
		if errors.As(err, &httpErr) && httpErr.Status == http.StatusNotFound {
			return domain.StatusRejected, nil
		}
		return domain.StatusPending, fmt.Errorf("raiinmaker: чтение задачи: %w", err)
	}

	task := resp.task()
	if !strings.EqualFold(task.Status, "completed") {
		return domain.StatusPending, nil
	}
	switch strings.ToLower(task.Answer) {
	case "true", "yes":
		return domain.StatusApproved, nil
	default:
		return domain.StatusRejected, nil
	}
}

func (r *Raiinmaker) fallback(ctx context.Context, draft domain.Draft, cause error) (domain.SubmitResult, error) {
	if !r.opts.DirectFallback || r.opts.DirectPost == nil {
		return domain.SubmitResult{}, cause
	}
	r.logger.Warn().Err(cause).Msg("raiinmaker: верификация недоступна, публикуем напрямую")
	if err := r.opts.DirectPost(ctx, draft); err != nil {
		return domain.SubmitResult{}, fmt.Errorf("raiinmaker: прямая публикация после сбоя: %w", err)
	}
	return domain.SubmitResult{DirectPosted: true}, nil
}

type raiinmakerHTTPError struct {
	Status int
	Body   string
}

func (e *raiinmakerHTTPError) Error() string {
	return fmt.Sprintf("raiinmaker: статус %d: %s", e.Status, e.Body)
}

func (r *Raiinmaker) do(ctx context.Context, method, endpoint, operation string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("создание запроса: %w", err)
	}
	req.Header.Set("X-App-Id", r.appID)
	req.Header.Set("X-Api-Key", r.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := r.http.Do(req)
	metrics.ObserveNetworkRequest("raiinmaker", operation, "tasks", start, err)
	if err != nil {
		return fmt.Errorf("выполнение запроса: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &raiinmakerHTTPError{Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("разбор ответа: %w", err)
		}
	}
	return nil
}
