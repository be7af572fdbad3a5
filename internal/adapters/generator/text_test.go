package generator

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncateShortTextUntouched(t *testing.T) {
	text := "Loving this sunny day"
	got := TruncateToCompleteSentence(text, 280)
	if got != text {
		t.Fatalf("короткий текст не должен меняться, получили %q", got)
	}
}

func TestTruncateEndsAtSentenceBoundary(t *testing.T) {
	text := strings.Repeat("Первое предложение. ", 30)
	got := TruncateToCompleteSentence(text, 100)
	if utf8.RuneCountInString(got) > 100 {
		t.Fatalf("ожидали не больше 100 рун, получили %d", utf8.RuneCountInString(got))
	}
	if !strings.HasSuffix(got, ".") {
		t.Fatalf("ожидали границу предложения в конце, получили %q", got)
	}
}

func TestTruncateWithoutBoundaryCutsAtWord(t *testing.T) {
	text := strings.Repeat("слово ", 60)
	got := TruncateToCompleteSentence(text, 50)
	if utf8.RuneCountInString(got) > 50 {
		t.Fatalf("ожидали не больше 50 рун, получили %d", utf8.RuneCountInString(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("ожидали многоточие в конце, получили %q", got)
	}
	if strings.Contains(strings.TrimSuffix(got, "..."), "слов ") {
		t.Fatalf("слово оборвано посередине: %q", got)
	}
}

func TestTruncateTinyLimit(t *testing.T) {
	// Лимит меньше резерва под многоточие не должен ронять усечение.
	for _, maxLength := range []int{1, 2, 3} {
		got := TruncateToCompleteSentence("abcdef ghij", maxLength)
		if !strings.HasSuffix(got, "...") {
			t.Fatalf("лимит %d: ожидали многоточие, получили %q", maxLength, got)
		}
		if utf8.RuneCountInString(got) > maxLength+3 {
			t.Fatalf("лимит %d: результат слишком длинный: %q", maxLength, got)
		}
	}
}

func TestTruncateKeepsQuestionAndExclamation(t *testing.T) {
	text := "Как же хорошо! А дальше идёт очень длинный хвост без знаков препинания который не поместится"
	got := TruncateToCompleteSentence(text, 20)
	if got != "Как же хорошо!" {
		t.Fatalf("ожидали обрезку по восклицанию, получили %q", got)
	}
}

func TestStripSurroundingQuotes(t *testing.T) {
	cases := map[string]string{
		`"в кавычках"`:  "в кавычках",
		`'в апострофах'`: "в апострофах",
		`без кавычек`:   "без кавычек",
		`"несимметрично'`: `"несимметрично'`,
	}
	for in, want := range cases {
		if got := StripSurroundingQuotes(in); got != want {
			t.Fatalf("для %q ожидали %q, получили %q", in, want, got)
		}
	}
}

func TestExpandEscapedNewlines(t *testing.T) {
	got := ExpandEscapedNewlines(`первое.\nвторое.`)
	if got != "первое.\n\nвторое." {
		t.Fatalf("ожидали абзацный разрыв, получили %q", got)
	}
}

func TestStripCodeFences(t *testing.T) {
	raw := "```json\n{\"text\": \"привет\"}\n```"
	got := StripCodeFences(raw)
	if got != `{"text": "привет"}` {
		t.Fatalf("ожидали содержимое без обрамления, получили %q", got)
	}
}
