package services

import (
	"strings"

	"webchat-transcript-exporter/internal/domain"
	"webchat-transcript-exporter/internal/ports"
)

// UnknownAuthor — имя, подставляемое, когда автора сообщения
// не удалось разрешить ни по справочнику участников, ни по идентификатору.
const UnknownAuthor = "Unknown"

// ExtractionServiceImpl реализует интерфейс ExtractionService.
type ExtractionServiceImpl struct{}

// NewExtractionService создает новый экземпляр ExtractionServiceImpl.
func NewExtractionService() ports.ExtractionService {
	return &ExtractionServiceImpl{}
}

// Extract проецирует сообщения в записи транскрипта, разрешая авторов
// через справочник участников. Сообщения без текста и без медиа сохраняются:
// фильтрация не задача экстрактора. Пустой вход дает пустой выход.
func (s *ExtractionServiceImpl) Extract(messages []domain.Message, users []domain.User) []domain.TranscriptRecord {
	if len(messages) == 0 {
		return nil
	}

	// Справочник identity -> отображаемое имя
	friendlyNames := make(map[string]string, len(users))
	for _, u := range users {
		friendlyNames[u.Identity] = u.FriendlyName
	}

	records := make([]domain.TranscriptRecord, 0, len(messages))
	for _, msg := range messages {
		records = append(records, domain.TranscriptRecord{
			Author:    resolveAuthor(msg.Author, friendlyNames),
			Body:      msg.Body,
			Timestamp: msg.Timestamp,
			Media:     msg.AttachedMedia,
		})
	}

	return records
}

// resolveAuthor разрешает идентификатор автора в отображаемое имя.
// Порядок отката: дружественное имя -> идентификатор -> UnknownAuthor.
func resolveAuthor(identity string, friendlyNames map[string]string) string {
	if name := friendlyNames[identity]; name != "" {
		return name
	}
	if identity != "" {
		return identity
	}
	return UnknownAuthor
}

// CustomerName возвращает отображаемое имя клиента: явное имя из
// pre-engagement формы имеет приоритет, иначе берется автор первой записи.
func (s *ExtractionServiceImpl) CustomerName(preEngagementName string, records []domain.TranscriptRecord) string {
	if name := strings.TrimSpace(preEngagementName); name != "" {
		return name
	}
	if len(records) == 0 {
		return ""
	}
	return strings.TrimSpace(records[0].Author)
}

// AgentNames возвращает уникальные имена авторов, отличные от имени клиента,
// в порядке первого появления в записях.
func (s *ExtractionServiceImpl) AgentNames(customerName string, records []domain.TranscriptRecord) []string {
	var agents []string
	seen := make(map[string]bool) // для отслеживания уже добавленных имен

	for _, rec := range records {
		if rec.Author == customerName {
			continue
		}
		if !seen[rec.Author] {
			seen[rec.Author] = true
			agents = append(agents, rec.Author)
		}
	}

	return agents
}
