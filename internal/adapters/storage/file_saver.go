package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"webchat-transcript-exporter/internal/domain"
	"webchat-transcript-exporter/internal/ports"
)

// FileSaver реализует интерфейс ArtifactSaver, сохраняя артефакт в каталог
// на диске. Это серверный аналог браузерного "сохранить как".
type FileSaver struct {
	dir string
}

// NewFileSaver создает новый экземпляр FileSaver.
func NewFileSaver(dir string) ports.ArtifactSaver {
	return &FileSaver{dir: dir}
}

// Save записывает артефакт в файл с его собственным именем.
func (s *FileSaver) Save(_ context.Context, artifact *domain.Artifact) error {
	if artifact == nil {
		return fmt.Errorf("артефакт не задан")
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(s.dir, artifact.Name)
	if err := os.WriteFile(path, artifact.Data, 0o644); err != nil {
		return fmt.Errorf("failed to write artifact %s: %w", path, err)
	}

	return nil
}

// MemorySaver реализует интерфейс ArtifactSaver, удерживая артефакт в памяти.
// Используется сервером: артефакт затем выдается через HTTP.
type MemorySaver struct {
	artifact *domain.Artifact
}

// NewMemorySaver создает новый экземпляр MemorySaver.
func NewMemorySaver() *MemorySaver {
	return &MemorySaver{}
}

// Save запоминает артефакт.
func (s *MemorySaver) Save(_ context.Context, artifact *domain.Artifact) error {
	if artifact == nil {
		return fmt.Errorf("артефакт не задан")
	}
	s.artifact = artifact
	return nil
}

// Artifact возвращает последний сохраненный артефакт или nil.
func (s *MemorySaver) Artifact() *domain.Artifact {
	return s.artifact
}
