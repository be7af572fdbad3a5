package persona

import (
	"encoding/json"
	"fmt"
	"os"

	"x-persona-bot/internal/domain"
)

// Default возвращает запасную персону на случай пустой конфигурации.
func Default() domain.Persona {
	return domain.Persona{
		Name:     "Agent",
		Username: "agent",
		Bio:      []string{"Автономный автор коротких постов."},
		Topics:   []string{"технологии", "повседневная жизнь"},
		Adjectives: []string{
			"наблюдательный",
			"ироничный",
		},
		Style: []string{
			"Пиши коротко и по делу.",
			"Без эмодзи и хэштегов.",
		},
	}
}

// Load читает персону из JSON-файла. Пустой путь — персона по умолчанию.
// Пропущенные поля дополняются из дефолта, чтобы генератору всегда было
// из чего собирать промпт.
func Load(path string) (domain.Persona, error) {
	if path == "" {
		return Default(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.Persona{}, fmt.Errorf("чтение файла персоны: %w", err)
	}
	var p domain.Persona
	if err := json.Unmarshal(raw, &p); err != nil {
		return domain.Persona{}, fmt.Errorf("разбор файла персоны: %w", err)
	}
	def := Default()
	if p.Name == "" {
		p.Name = def.Name
	}
	if p.Username == "" {
		p.Username = def.Username
	}
	if len(p.Bio) == 0 {
		p.Bio = def.Bio
	}
	if len(p.Topics) == 0 {
		p.Topics = def.Topics
	}
	if len(p.Adjectives) == 0 {
		p.Adjectives = def.Adjectives
	}
	if len(p.Style) == 0 {
		p.Style = def.Style
	}
	return p, nil
}
