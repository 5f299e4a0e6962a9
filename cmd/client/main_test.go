package main

import (
	"encoding/json"
	"fmt"
	"testing"
)

func TestEnsureRecipient(t *testing.T) {
	t.Run("Снимок с адресом возвращается без изменений", func(t *testing.T) {
		snapshot := []byte(`{"messages": [], "pre_engagement": {"email": "alice@example.com"}}`)

		result, err := ensureRecipient(snapshot, func(string) (string, error) {
			t.Error("Не ожидался интерактивный запрос адреса")
			return "", nil
		})
		if err != nil {
			t.Fatalf("Неожиданная ошибка: %v", err)
		}

		if string(result) != string(snapshot) {
			t.Errorf("Ожидался неизмененный снимок, получено '%s'", result)
		}
	})

	t.Run("Отсутствующий адрес запрашивается и подставляется", func(t *testing.T) {
		snapshot := []byte(`{"messages": []}`)

		result, err := ensureRecipient(snapshot, func(prompt string) (string, error) {
			return "bob@example.com", nil
		})
		if err != nil {
			t.Fatalf("Неожиданная ошибка: %v", err)
		}

		var doc map[string]any
		if err := json.Unmarshal(result, &doc); err != nil {
			t.Fatalf("Не удалось разобрать результат: %v", err)
		}

		pre, _ := doc["pre_engagement"].(map[string]any)
		if email, _ := pre["email"].(string); email != "bob@example.com" {
			t.Errorf("Ожидался адрес 'bob@example.com', получено '%s'", email)
		}
	})

	t.Run("Пустой введенный адрес дает ошибку", func(t *testing.T) {
		snapshot := []byte(`{"messages": []}`)

		_, err := ensureRecipient(snapshot, func(string) (string, error) {
			return "", nil
		})
		if err == nil {
			t.Error("Ожидалась ошибка для пустого адреса, получено nil")
		}
	})

	t.Run("Ошибка запроса прокидывается наружу", func(t *testing.T) {
		snapshot := []byte(`{"messages": []}`)

		_, err := ensureRecipient(snapshot, func(string) (string, error) {
			return "", fmt.Errorf("обрыв ввода")
		})
		if err == nil {
			t.Error("Ожидалась ошибка запроса, получено nil")
		}
	})

	t.Run("Некорректный JSON дает ошибку", func(t *testing.T) {
		_, err := ensureRecipient([]byte(`{`), func(string) (string, error) {
			return "bob@example.com", nil
		})
		if err == nil {
			t.Error("Ожидалась ошибка для некорректного JSON, получено nil")
		}
	})
}

func TestArtifactFilename(t *testing.T) {
	tests := []struct {
		disposition string
		expected    string
	}{
		{`attachment; filename="chat-with-alice-sat-aug-29-2026.zip"`, "chat-with-alice-sat-aug-29-2026.zip"},
		{`attachment`, ""},
		{`attachment; filename="unterminated`, ""},
		{``, ""},
	}

	for _, tt := range tests {
		if got := artifactFilename(tt.disposition); got != tt.expected {
			t.Errorf("artifactFilename(%q) = %q, want %q", tt.disposition, got, tt.expected)
		}
	}
}
