package format

import (
	"fmt"
	"strings"

	"webchat-transcript-exporter/internal/domain"
	"webchat-transcript-exporter/internal/ports"
)

// timestampLayout — ISO-подобный локальный формат временной метки строки
// транскрипта, без зоны.
const timestampLayout = "2006-01-02T15:04:05"

// DownloadFormatter реализует интерфейс Formatter для текстового транскрипта,
// предназначенного для скачивания.
type DownloadFormatter struct{}

// NewDownloadFormatter создает новый экземпляр DownloadFormatter.
func NewDownloadFormatter() ports.Formatter {
	return &DownloadFormatter{}
}

// Format отображает записи построчно: "<автор> (<метка>): <текст>",
// строки соединяются переводом строки без завершающих метаданных.
// Одинаковые записи всегда дают побайтово одинаковый результат.
func (f *DownloadFormatter) Format(customerName string, agentNames []string, records []domain.TranscriptRecord) ([]byte, error) {
	lines := make([]string, 0, len(records))
	for _, rec := range records {
		lines = append(lines, transcriptLine(rec))
	}
	return []byte(strings.Join(lines, "\n")), nil
}

// FileExtension возвращает расширение файла формата.
func (f *DownloadFormatter) FileExtension() string { return ".txt" }

// ContentType возвращает MIME-тип формата.
func (f *DownloadFormatter) ContentType() string { return "text/plain" }

// transcriptLine отображает одну запись транскрипта в строку.
func transcriptLine(rec domain.TranscriptRecord) string {
	return fmt.Sprintf("%s (%s): %s", rec.Author, rec.Timestamp.Local().Format(timestampLayout), rec.Body)
}
