package format

import (
	"strings"

	"webchat-transcript-exporter/internal/domain"
	"webchat-transcript-exporter/internal/ports"
)

// EmailFormatter реализует интерфейс Formatter для HTML-тела письма.
// Содержимое совпадает с текстовым форматом, строки разделяются <br/>.
// Санитизация HTML — ответственность бэкенда, формирующего письмо.
type EmailFormatter struct{}

// NewEmailFormatter создает новый экземпляр EmailFormatter.
func NewEmailFormatter() ports.Formatter {
	return &EmailFormatter{}
}

// Format отображает записи транскрипта в минимальный HTML.
func (f *EmailFormatter) Format(customerName string, agentNames []string, records []domain.TranscriptRecord) ([]byte, error) {
	lines := make([]string, 0, len(records))
	for _, rec := range records {
		lines = append(lines, transcriptLine(rec))
	}

	var sb strings.Builder
	sb.WriteString("<div>")
	sb.WriteString(strings.Join(lines, "<br/>"))
	sb.WriteString("</div>")

	return []byte(sb.String()), nil
}

// FileExtension возвращает расширение файла формата.
func (f *EmailFormatter) FileExtension() string { return ".html" }

// ContentType возвращает MIME-тип формата.
func (f *EmailFormatter) ContentType() string { return "text/html" }
