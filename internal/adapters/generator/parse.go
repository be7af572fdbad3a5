package generator

import (
	"encoding/json"
	"regexp"
	"strings"
)

// parseFunc одна стратегия извлечения текста поста из ответа модели.
// Стратегии пробуются по порядку; первая успешная выигрывает.
type parseFunc func(raw string) (string, bool)

var parseChain = []parseFunc{
	parseJSONObject,
	parseTextAttribute,
	parseRawText,
}

// ExtractPostText извлекает текст поста из сырого ответа модели:
// структурный JSON, затем извлечение атрибута, затем сырой текст.
func ExtractPostText(raw string) (string, bool) {
	cleaned := StripCodeFences(raw)
	for _, parse := range parseChain {
		if text, ok := parse(cleaned); ok {
			return text, true
		}
	}
	return "", false
}

// parseJSONObject принимает объект вида {"text": "..."}; также понимает
// альтернативные поля content/message/response.
func parseJSONObject(raw string) (string, bool) {
	var payload map[string]any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return "", false
	}
	for _, key := range []string{"text", "content", "message", "response"} {
		if value, ok := payload[key].(string); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value), true
		}
	}
	return "", false
}

var textAttrRe = regexp.MustCompile(`"text"\s*:\s*"((?:[^"\\]|\\.)*)"`)

// parseTextAttribute вытаскивает значение атрибута text из
// полуструктурированного текста, когда полный JSON не разобрался.
func parseTextAttribute(raw string) (string, bool) {
	m := textAttrRe.FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}
	value := m[1]
	value = strings.ReplaceAll(value, `\"`, `"`)
	value = strings.TrimSpace(value)
	return value, value != ""
}

func parseRawText(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	return trimmed, trimmed != ""
}
