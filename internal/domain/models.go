package domain

import (
	"context"
	"errors"
	"time"
)

// ConversationSnapshot представляет снимок завершенной беседы,
// переданный на экспорт. Снимок неизменяем на время экспорта.
type ConversationSnapshot struct {
	Messages      []Message     `json:"messages"`
	Users         []User        `json:"users"`
	PreEngagement PreEngagement `json:"pre_engagement"`
}

// Message представляет одно сообщение в беседе.
type Message struct {
	Author        string            `json:"author"`
	Body          string            `json:"body"`
	Timestamp     time.Time         `json:"timestamp"`
	AttachedMedia []MediaAttachment `json:"attached_media,omitempty"`
}

// User представляет участника беседы.
// Используется для разрешения идентификатора автора в отображаемое имя.
type User struct {
	Identity     string `json:"identity"`
	FriendlyName string `json:"friendly_name,omitempty"`
}

// PreEngagement представляет данные формы, заполненной до начала беседы.
type PreEngagement struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// ContentURLResolver — способность вложения вернуть временный URL,
// по которому можно получить его содержимое. Может завершиться ошибкой
// независимо для каждого вложения.
type ContentURLResolver interface {
	TemporaryURL(ctx context.Context) (string, error)
}

// MediaAttachment представляет вложение сообщения.
type MediaAttachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	// ContentURL — заранее выданный временный URL (например, из снимка JSON).
	ContentURL string `json:"content_url,omitempty"`
	// Resolver имеет приоритет над ContentURL, если он установлен.
	Resolver ContentURLResolver `json:"-"`
}

// ErrNoContentURL возвращается, когда у вложения нет ни способности
// разрешения, ни заранее выданного URL.
var ErrNoContentURL = errors.New("attachment has no temporary content URL")

// TemporaryURL возвращает временный URL содержимого вложения.
func (m *MediaAttachment) TemporaryURL(ctx context.Context) (string, error) {
	if m.Resolver != nil {
		return m.Resolver.TemporaryURL(ctx)
	}
	if m.ContentURL != "" {
		return m.ContentURL, nil
	}
	return "", ErrNoContentURL
}

// TranscriptRecord — одна нормализованная строка транскрипта с разрешенным
// именем автора. Последовательность записей сохраняет хронологический порядок.
type TranscriptRecord struct {
	Author    string
	Body      string
	Timestamp time.Time
	Media     []MediaAttachment
}

// MediaInfo описывает одно успешно разрешенное вложение.
// Живет в пределах одного вызова экспорта.
type MediaInfo struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Type     string `json:"type"`
}

// Artifact — итоговый переносимый результат экспорта: либо один текстовый
// файл, либо zip-архив.
type Artifact struct {
	Name        string
	ContentType string
	Data        []byte
}

// Progress отражает ход текущего экспорта. Percent монотонно не убывает
// в пределах одного вызова и сбрасывается в 0 при старте нового.
type Progress struct {
	Percent int
	// Generating различает фазу генерации транскрипта и фазу передачи.
	Generating bool
}

// EmailRequest — тело запроса к бэкенд-сервису отправки транскрипта.
// Имена полей повторяют контракт конечной точки /email.
type EmailRequest struct {
	RecipientAddress string      `json:"recipientAddress"`
	Subject          string      `json:"subject,omitempty"`
	Text             string      `json:"text,omitempty"`
	MediaInfo        []MediaInfo `json:"mediaInfo"`
	UniqueFilenames  []string    `json:"uniqueFilenames"`
}
