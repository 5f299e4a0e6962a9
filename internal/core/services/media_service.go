package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"webchat-transcript-exporter/internal/domain"
	"webchat-transcript-exporter/internal/ports"
)

// MediaConfig хранит конфигурацию для MediaService.
type MediaConfig struct {
	// PoolSize — количество одновременных воркеров разрешения вложений.
	PoolSize int
	// OperationTimeout — таймаут для разрешения одного вложения.
	OperationTimeout time.Duration
}

// MediaOption — функциональная опция для настройки MediaService.
type MediaOption func(*MediaService)

// WithPoolSize устанавливает количество одновременных воркеров.
func WithPoolSize(n int) MediaOption {
	return func(s *MediaService) {
		if n > 0 {
			s.config.PoolSize = n
		}
	}
}

// WithOperationTimeout устанавливает таймаут разрешения одного вложения.
func WithOperationTimeout(d time.Duration) MediaOption {
	return func(s *MediaService) {
		if d > 0 {
			s.config.OperationTimeout = d
		}
	}
}

// WithLogger устанавливает логгер для сервиса.
func WithLogger(l *slog.Logger) MediaOption {
	return func(s *MediaService) {
		if l != nil {
			s.log = l
		}
	}
}

// MediaService разрешает вложения транскрипта во временные URL.
// Сервис не хранит состояние и безопасен для одновременного использования.
type MediaService struct {
	config MediaConfig
	log    *slog.Logger
}

// NewMediaService создает новый MediaService с использованием функциональных опций.
func NewMediaService(opts ...MediaOption) *MediaService {
	s := &MediaService{
		config: MediaConfig{
			PoolSize:         4,
			OperationTimeout: 30 * time.Second,
		},
		log: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

var _ ports.MediaResolver = (*MediaService)(nil)

// mediaTask — одно вложение вместе с его позицией в порядке обхода.
type mediaTask struct {
	index      int
	attachment domain.MediaAttachment
}

// mediaResult — результат разрешения одного вложения.
type mediaResult struct {
	index int
	info  domain.MediaInfo
	err   error
}

// ResolveAll разрешает все вложения записей во временные URL.
// Разрешения выполняются одновременно, но итоговый порядок восстанавливается
// по исходному индексу вложения, а не по порядку завершения. Вложение,
// разрешение которого завершилось ошибкой, логируется и опускается:
// частичный успех не прерывает экспорт.
func (s *MediaService) ResolveAll(ctx context.Context, records []domain.TranscriptRecord) []domain.MediaInfo {
	var attachments []mediaTask
	for _, rec := range records {
		for _, media := range rec.Media {
			attachments = append(attachments, mediaTask{index: len(attachments), attachment: media})
		}
	}

	if len(attachments) == 0 {
		return nil
	}

	poolSize := s.config.PoolSize
	if poolSize > len(attachments) {
		poolSize = len(attachments)
	}

	tasks := make(chan mediaTask, len(attachments))
	results := make(chan mediaResult, len(attachments))
	var wg sync.WaitGroup

	for i := 0; i < poolSize; i++ {
		wg.Add(1)
		go s.worker(ctx, &wg, tasks, results)
	}

	for _, t := range attachments {
		tasks <- t
	}
	close(tasks)

	wg.Wait()
	close(results)

	// Результаты раскладываются по исходным позициям, чтобы порядок
	// не зависел от порядка завершения воркеров.
	slots := make([]*domain.MediaInfo, len(attachments))
	for res := range results {
		if res.err != nil {
			s.log.ErrorContext(ctx, "Failed downloading message attachment",
				"filename", attachments[res.index].attachment.Filename,
				"error", res.err,
			)
			continue
		}
		info := res.info
		slots[res.index] = &info
	}

	mediaInfo := make([]domain.MediaInfo, 0, len(attachments))
	for _, slot := range slots {
		if slot != nil {
			mediaInfo = append(mediaInfo, *slot)
		}
	}

	return mediaInfo
}

func (s *MediaService) worker(ctx context.Context, wg *sync.WaitGroup, tasks <-chan mediaTask, results chan<- mediaResult) {
	defer wg.Done()
	for t := range tasks {
		opCtx, cancel := context.WithTimeout(ctx, s.config.OperationTimeout)
		url, err := t.attachment.TemporaryURL(opCtx)
		cancel()

		if err != nil {
			results <- mediaResult{index: t.index, err: err}
			continue
		}

		results <- mediaResult{
			index: t.index,
			info: domain.MediaInfo{
				URL:      url,
				Filename: t.attachment.Filename,
				Type:     t.attachment.ContentType,
			},
		}
	}
}
