package generator

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"x-persona-bot/internal/domain"
	openai "x-persona-bot/internal/infra/openai"
)

type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAI реализует генератор черновиков через OpenAI Chat Completions.
type OpenAI struct {
	client    chatClient
	model     string
	persona   domain.Persona
	maxLength int
	timeout   time.Duration
}

var _ domain.TextGenerator = (*OpenAI)(nil)

// NewOpenAI создаёт генератор.
func NewOpenAI(client chatClient, model string, persona domain.Persona, maxLength int, timeout time.Duration) *OpenAI {
	if model == "" {
		model = "gpt-4.1-mini"
	}
	if maxLength <= 0 {
		maxLength = 280
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenAI{client: client, model: model, persona: persona, maxLength: maxLength, timeout: timeout}
}

// GenerateDraft строит черновик поста: запрашивает текст у провайдера,
// прогоняет ответ через цепочку парсеров и чистит результат.
func (g *OpenAI) GenerateDraft(ctx context.Context, kind domain.DraftKind) (domain.Draft, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: 0.7,
		MaxTokens:   300,
		// Промпт требует объект {"text": ...}; просим провайдера
		// гарантировать формат, а не надеяться на цепочку парсеров.
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ResponseFormatTypeJSONObject},
		Messages: []openai.ChatMessage{
			{Role: openai.RoleSystem, Content: g.systemPrompt()},
			{Role: openai.RoleUser, Content: g.userPrompt(kind)},
		},
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return domain.Draft{}, fmt.Errorf("генерация поста: %w", err)
	}
	if len(resp.Choices) == 0 {
		return domain.Draft{}, domain.ErrEmptyGeneration
	}
	raw := strings.TrimSpace(resp.Choices[0].Message.Content)
	if raw == "" {
		return domain.Draft{}, domain.ErrEmptyGeneration
	}

	text, ok := ExtractPostText(raw)
	if !ok {
		return domain.Draft{}, domain.ErrEmptyGeneration
	}
	text = ExpandEscapedNewlines(text)
	text = StripSurroundingQuotes(strings.TrimSpace(text))
	text = TruncateToCompleteSentence(text, g.maxLength)
	if text == "" {
		return domain.Draft{}, domain.ErrEmptyGeneration
	}

	return domain.Draft{
		ID:         uuid.NewString(),
		RoomID:     "twitter_generate_room-" + g.persona.Username,
		Text:       text,
		RawContent: raw,
		CreatedAt:  time.Now(),
	}, nil
}

func (g *OpenAI) systemPrompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ты пишешь посты от лица %s (@%s).\n", g.persona.Name, g.persona.Username)
	if len(g.persona.Bio) > 0 {
		b.WriteString("О персонаже:\n")
		for _, line := range g.persona.Bio {
			b.WriteString("- " + line + "\n")
		}
	}
	if len(g.persona.Style) > 0 {
		b.WriteString("Правила стиля:\n")
		for _, line := range g.persona.Style {
			b.WriteString("- " + line + "\n")
		}
	}
	if len(g.persona.PostExamples) > 0 {
		b.WriteString("Примеры постов:\n")
		for _, ex := range g.persona.PostExamples {
			b.WriteString("- " + ex + "\n")
		}
	}
	return b.String()
}

func (g *OpenAI) userPrompt(kind domain.DraftKind) string {
	adjective := pick(g.persona.Adjectives)
	topic := pick(g.persona.Topics)

	if kind == domain.DraftMedia {
		return fmt.Sprintf(`Напиши короткую подпись к медиапосту от лица @%s.
Подпись должна быть %s и перекликаться с интересами персонажа, не описывая само медиа.
Не больше двух предложений, без эмодзи, максимум %d символов.
Ответь строго JSON-объектом {"text": "..."} без пояснений.`,
			g.persona.Username, adjective, g.maxLength)
	}

	return fmt.Sprintf(`Напиши пост от лица @%s: %s, на тему «%s», не называя тему напрямую.
1-3 предложения, без вопросов, без эмодзи, максимум %d символов.
Между предложениями используй \n\n.
Ответь строго JSON-объектом {"text": "..."} без пояснений.`,
		g.persona.Username, adjective, topic, g.maxLength)
}

func pick(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[rand.Intn(len(values))]
}
