package parser

import (
	"encoding/json"
	"fmt"
	"sort"

	"webchat-transcript-exporter/internal/domain"
	"webchat-transcript-exporter/internal/ports"
)

// JsonParser реализует интерфейс SnapshotParser для разбора JSON данных.
type JsonParser struct{}

// NewJsonParser создает новый экземпляр JsonParser.
func NewJsonParser() ports.SnapshotParser {
	return &JsonParser{}
}

// Parse преобразует срез байт с JSON в снимок беседы. Сообщения
// нормализуются к хронологическому порядку (стабильная сортировка по
// временной метке), так как дальнейший конвейер на этот порядок опирается.
func (p *JsonParser) Parse(data []byte) (*domain.ConversationSnapshot, error) {
	var snapshot domain.ConversationSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal json: %w", err)
	}

	sort.SliceStable(snapshot.Messages, func(i, j int) bool {
		return snapshot.Messages[i].Timestamp.Before(snapshot.Messages[j].Timestamp)
	})

	return &snapshot, nil
}
