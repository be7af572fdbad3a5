package generator

import (
	"regexp"
	"strings"
)

var codeFenceRe = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

// StripCodeFences снимает обрамление ```json ... ``` с ответа модели.
func StripCodeFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if m := codeFenceRe.FindStringSubmatch(trimmed); m != nil {
		return strings.TrimSpace(m[1])
	}
	return trimmed
}

// StripSurroundingQuotes убирает одну пару обрамляющих кавычек.
func StripSurroundingQuotes(text string) string {
	if len(text) < 2 {
		return text
	}
	first := text[0]
	last := text[len(text)-1]
	if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
		return text[1 : len(text)-1]
	}
	return text
}

// ExpandEscapedNewlines превращает литеральные \n в абзацные разрывы.
func ExpandEscapedNewlines(text string) string {
	return strings.ReplaceAll(text, `\n`, "\n\n")
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '…':
		return true
	}
	return false
}

// TruncateToCompleteSentence усекает текст до maxLength рун, не обрывая
// предложение посередине. Если границы предложения в пределах лимита нет,
// текст режется по последнему пробелу с добавлением многоточия.
func TruncateToCompleteSentence(text string, maxLength int) string {
	text = strings.TrimSpace(text)
	if maxLength <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= maxLength {
		return text
	}

	cut := runes[:maxLength]
	for i := len(cut) - 1; i >= 0; i-- {
		if isSentenceEnd(cut[i]) {
			return strings.TrimSpace(string(cut[:i+1]))
		}
	}

	// Границы предложения нет: режем по слову, оставляя место под многоточие.
	// При крошечном лимите резерва под многоточие нет.
	if maxLength > 3 {
		cut = runes[:maxLength-3]
	}
	if idx := lastSpace(cut); idx > 0 {
		cut = cut[:idx]
	}
	return strings.TrimSpace(string(cut)) + "..."
}

func lastSpace(runes []rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == ' ' || runes[i] == '\n' {
			return i
		}
	}
	return -1
}
