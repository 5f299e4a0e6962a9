package ports

import (
	"context"

	"webchat-transcript-exporter/internal/domain"
)

// DataSource определяет интерфейс для получения исходных данных снимка беседы.
type DataSource interface {
	// Fetch загружает данные из источника и возвращает их в виде байтового среза.
	Fetch() ([]byte, error)
}

// SnapshotParser определяет интерфейс для разбора данных снимка беседы.
type SnapshotParser interface {
	// Parse преобразует сырые данные в структурированный снимок беседы.
	Parse(data []byte) (*domain.ConversationSnapshot, error)
}

// ExtractionService определяет интерфейс для построения транскрипта из снимка
// и разрешения имен участников.
type ExtractionService interface {
	// Extract проецирует сообщения и участников в упорядоченную
	// последовательность записей транскрипта.
	Extract(messages []domain.Message, users []domain.User) []domain.TranscriptRecord
	// CustomerName возвращает отображаемое имя клиента.
	CustomerName(preEngagementName string, records []domain.TranscriptRecord) string
	// AgentNames возвращает уникальные имена агентов в порядке первого появления.
	AgentNames(customerName string, records []domain.TranscriptRecord) []string
}

// MediaResolver определяет интерфейс для разрешения вложений во временные URL.
type MediaResolver interface {
	// ResolveAll разрешает все вложения записей. Порядок результата совпадает
	// с порядком обхода вложений; невосстановимые вложения опускаются.
	ResolveAll(ctx context.Context, records []domain.TranscriptRecord) []domain.MediaInfo
}

// Formatter определяет интерфейс для представления транскрипта в одном из
// целевых форматов.
type Formatter interface {
	// Format отображает записи транскрипта в целевой формат.
	Format(customerName string, agentNames []string, records []domain.TranscriptRecord) ([]byte, error)

	// FileExtension возвращает расширение файла формата (например, ".txt").
	FileExtension() string

	// ContentType возвращает MIME-тип формата.
	ContentType() string
}

// BundleBuilder определяет интерфейс для упаковки транскрипта и медиафайлов
// в итоговый артефакт.
type BundleBuilder interface {
	// Build собирает артефакт: текстовый файл при отсутствии медиа, иначе
	// zip-архив с папкой baseName.
	Build(ctx context.Context, transcript []byte, media []domain.MediaInfo, filenames []string, baseName string) (*domain.Artifact, error)
}

// ArtifactSaver определяет интерфейс для сохранения итогового артефакта.
type ArtifactSaver interface {
	Save(ctx context.Context, artifact *domain.Artifact) error
}

// EmailGateway определяет интерфейс для отправки транскрипта через
// бэкенд-сервис электронной почты.
type EmailGateway interface {
	SendTranscript(ctx context.Context, req domain.EmailRequest) error
}
