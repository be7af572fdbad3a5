package twitter

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"x-persona-bot/internal/adapters/generator"
	"x-persona-bot/internal/domain"
	"x-persona-bot/internal/infra/metrics"
)

const (
	defaultAPIBase    = "https://api.x.com/2"
	defaultUploadBase = "https://upload.twitter.com/1.1"
)

// Credentials учётные данные OAuth 1.0a.
type Credentials struct {
	APIKey            string
	APISecret         string
	AccessToken       string
	AccessTokenSecret string
}

// Client публикует твиты через API X (Twitter) с подписью OAuth 1.0a.
// Стандартный и длинный (note) пути разделены: при недоступности
// длинных постов клиент откатывается на стандартный с усечением текста.
type Client struct {
	http       *http.Client
	apiBase    string
	uploadBase string
	username   string
	creds      Credentials
	maxLength  int
	logger     zerolog.Logger
}

var _ domain.Publisher = (*Client)(nil)

// NewClient создаёт клиента. Неполные учётные данные — ошибка
// конфигурации.
func NewClient(creds Credentials, username string, maxLength int, logger zerolog.Logger) (*Client, error) {
	if creds.APIKey == "" || creds.APISecret == "" || creds.AccessToken == "" || creds.AccessTokenSecret == "" {
		return nil, errors.New("twitter: неполные учётные данные oauth")
	}
	return &Client{
		http:       &http.Client{Timeout: 30 * time.Second},
		apiBase:    defaultAPIBase,
		uploadBase: defaultUploadBase,
		username:   username,
		creds:      creds,
		maxLength:  maxLength,
		logger:     logger,
	}, nil
}

type tweetResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}

// SendTweet публикует стандартный твит, при наличии медиа —
// предварительно загружает файлы. Структурно некорректный ответ API —
// ошибка domain.ErrBadResponse: запись считается не опубликованной.
func (c *Client) SendTweet(ctx context.Context, text string, media []domain.MediaAsset) (domain.PostedTweet, error) {
	return c.post(ctx, text, media, "standard")
}

// SendNoteTweet публикует длинный пост. Если аккаунту длинные посты
// недоступны (401/403), откатывается на стандартный твит с усечением
// текста до целого предложения.
func (c *Client) SendNoteTweet(ctx context.Context, text string, media []domain.MediaAsset) (domain.PostedTweet, error) {
	posted, err := c.post(ctx, text, media, "note")
	if err == nil {
		return posted, nil
	}

	var httpErr *twitterHTTPError
	if errors.As(err, &httpErr) && (httpErr.Status == http.StatusUnauthorized || httpErr.Status == http.StatusForbidden) {
		c.logger.Warn().Err(err).Msg("twitter: длинные посты недоступны, публикуем усечённый твит")
		return c.post(ctx, generator.TruncateToCompleteSentence(text, c.maxLength), media, "standard")
	}
	return domain.PostedTweet{}, err
}

func (c *Client) post(ctx context.Context, text string, media []domain.MediaAsset, source string) (domain.PostedTweet, error) {
	payload := map[string]any{"text": text}
	if len(media) > 0 {
		ids := make([]string, 0, len(media))
		for _, asset := range media {
			id, err := c.uploadMedia(ctx, asset)
			if err != nil {
				return domain.PostedTweet{}, fmt.Errorf("twitter: загрузка медиа %s: %w", asset.Path, err)
			}
			ids = append(ids, id)
		}
		payload["media"] = map[string]any{"media_ids": ids}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return domain.PostedTweet{}, fmt.Errorf("twitter: сериализация твита: %w", err)
	}

	endpoint := c.apiBase + "/tweets"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.PostedTweet{}, fmt.Errorf("twitter: создание запроса: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	// Тело в формате JSON не участвует в подписи OAuth 1.0a.
	auth, err := c.authorizationHeader(http.MethodPost, endpoint, nil)
	if err != nil {
		return domain.PostedTweet{}, fmt.Errorf("twitter: подпись запроса: %w", err)
	}
	req.Header.Set("Authorization", auth)

	var resp tweetResponse
	if err := c.do(req, "create_tweet", &resp); err != nil {
		return domain.PostedTweet{}, err
	}
	if resp.Data.ID == "" {
		return domain.PostedTweet{}, fmt.Errorf("twitter: ответ без id твита: %w", domain.ErrBadResponse)
	}

	posted := domain.PostedTweet{
		ID:        resp.Data.ID,
		Text:      text,
		URL:       fmt.Sprintf("https://twitter.com/%s/status/%s", c.username, resp.Data.ID),
		Source:    source,
		Timestamp: time.Now(),
	}
	c.logger.Info().Str("tweet_id", posted.ID).Str("source", source).Msg("twitter: твит опубликован")
	return posted, nil
}

type mediaUploadResponse struct {
	MediaIDString string `json:"media_id_string"`
}

func (c *Client) uploadMedia(ctx context.Context, asset domain.MediaAsset) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("media", filepath.Base(asset.Path))
	if err != nil {
		return "", fmt.Errorf("формирование формы: %w", err)
	}
	if _, err := part.Write(asset.Data); err != nil {
		return "", fmt.Errorf("запись медиа в форму: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("закрытие формы: %w", err)
	}

	endpoint := c.uploadBase + "/media/upload.json"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return "", fmt.Errorf("создание запроса: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	// Multipart-тело, как и JSON, не участвует в подписи.
	auth, err := c.authorizationHeader(http.MethodPost, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("подпись запроса: %w", err)
	}
	req.Header.Set("Authorization", auth)

	var resp mediaUploadResponse
	if err := c.do(req, "upload_media", &resp); err != nil {
		return "", err
	}
	if resp.MediaIDString == "" {
		return "", fmt.Errorf("ответ без media_id: %w", domain.ErrBadResponse)
	}
	return resp.MediaIDString, nil
}

type twitterHTTPError struct {
	Status int
	Body   string
}

func (e *twitterHTTPError) Error() string {
	return fmt.Sprintf("twitter: статус %d: %s", e.Status, e.Body)
}

func (c *Client) do(req *http.Request, operation string, out any) error {
	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.ObserveNetworkRequest("twitter", operation, c.username, start, err)
	if err != nil {
		return fmt.Errorf("twitter: выполнение запроса: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &twitterHTTPError{Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("twitter: разбор ответа: %w", err)
		}
	}
	return nil
}

// authorizationHeader строит заголовок OAuth 1.0a с подписью
// HMAC-SHA1. extraParams — параметры запроса, участвующие в подписи
// (query или form-urlencoded тело).
func (c *Client) authorizationHeader(method, rawURL string, extraParams url.Values) (string, error) {
	nonce, err := newNonce()
	if err != nil {
		return "", err
	}

	oauthParams := map[string]string{
		"oauth_consumer_key":     c.creds.APIKey,
		"oauth_nonce":            nonce,
		"oauth_signature_method": "HMAC-SHA1",
		"oauth_timestamp":        fmt.Sprintf("%d", time.Now().Unix()),
		"oauth_token":            c.creds.AccessToken,
		"oauth_version":          "1.0",
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("разбор url: %w", err)
	}
	baseURL := parsed.Scheme + "://" + parsed.Host + parsed.Path

	all := map[string]string{}
	for key, value := range oauthParams {
		all[key] = value
	}
	for key, values := range parsed.Query() {
		if len(values) > 0 {
			all[key] = values[0]
		}
	}
	for key, values := range extraParams {
		if len(values) > 0 {
			all[key] = values[0]
		}
	}

	keys := make([]string, 0, len(all))
	for key := range all {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, percentEncode(key)+"="+percentEncode(all[key]))
	}
	paramString := strings.Join(pairs, "&")

	signatureBase := strings.Join([]string{
		strings.ToUpper(method),
		percentEncode(baseURL),
		percentEncode(paramString),
	}, "&")
	signingKey := percentEncode(c.creds.APISecret) + "&" + percentEncode(c.creds.AccessTokenSecret)

	mac := hmac.New(sha1.New, []byte(signingKey))
	mac.Write([]byte(signatureBase))
	oauthParams["oauth_signature"] = base64.StdEncoding.EncodeToString(mac.Sum(nil))

	headerKeys := make([]string, 0, len(oauthParams))
	for key := range oauthParams {
		headerKeys = append(headerKeys, key)
	}
	sort.Strings(headerKeys)

	parts := make([]string, 0, len(headerKeys))
	for _, key := range headerKeys {
		parts = append(parts, fmt.Sprintf(`%s="%s"`, percentEncode(key), percentEncode(oauthParams[key])))
	}
	return "OAuth " + strings.Join(parts, ", "), nil
}

func newNonce() (string, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("генерация nonce: %w", err)
	}
	return hex.EncodeToString(raw), nil
}

// percentEncode кодирует строку по RFC 3986: незарезервированные
// символы остаются как есть, остальные — %XX.
func percentEncode(s string) string {
	var b strings.Builder
	for _, c := range []byte(s) {
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9',
			c == '-', c == '.', c == '_', c == '~':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}
