package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"webchat-transcript-exporter/internal/core/services"
	"webchat-transcript-exporter/internal/domain"
	"webchat-transcript-exporter/internal/pkg/config"
	"webchat-transcript-exporter/internal/ports"
)

// ErrEmptyTranscript возвращается при попытке экспортировать снимок без
// сообщений. Это нарушение контракта вызывающей стороны: элементы управления
// экспортом недоступны, пока история пуста.
var ErrEmptyTranscript = errors.New("в снимке беседы нет сообщений")

// ErrExportInFlight возвращается при повторном вызове экспорта, пока
// предыдущий не завершился. Повторный вызов отклоняется, а не ставится в очередь.
var ErrExportInFlight = errors.New("экспорт уже выполняется")

// ErrNoRecipient возвращается, когда для отправки на почту не указан адрес
// получателя.
var ErrNoRecipient = errors.New("не указан адрес получателя")

// Контрольные точки прогресса двух потоков экспорта.
const (
	progressStarted   = 10
	progressFormatted = 25
	progressResolved  = 50
	progressGenerated = 75
	progressDone      = 100
)

// Option — функциональная опция для настройки ExportTranscriptUseCase.
type Option func(*ExportTranscriptUseCase)

// WithLogger устанавливает логгер для оркестратора.
func WithLogger(l *slog.Logger) Option {
	return func(uc *ExportTranscriptUseCase) {
		if l != nil {
			uc.log = l
		}
	}
}

// WithProgressFunc устанавливает наблюдателя прогресса. Наблюдатель вызывается
// синхронно при каждом изменении прогресса.
func WithProgressFunc(fn func(domain.Progress)) Option {
	return func(uc *ExportTranscriptUseCase) {
		uc.onProgress = fn
	}
}

// WithDownloadFormatter заменяет форматтер потока скачивания. Медиафайлы
// упаковываются в архив только для текстового формата; альтернативные
// форматы отдаются как есть.
func WithDownloadFormatter(f ports.Formatter) Option {
	return func(uc *ExportTranscriptUseCase) {
		if f != nil {
			uc.downloadFmt = f
		}
	}
}

// ExportTranscriptUseCase — оркестратор экспорта транскрипта. Параметризован
// потоком (скачивание или почта) и ведет экспорт через общие стадии:
// извлечение -> форматирование -> разрешение медиа -> упаковка или отправка.
// Прогресс обновляется при входе в каждую стадию.
type ExportTranscriptUseCase struct {
	transcriptCfg config.Transcript
	extractor     ports.ExtractionService
	media         ports.MediaResolver
	downloadFmt   ports.Formatter
	emailFmt      ports.Formatter
	bundler       ports.BundleBuilder
	saver         ports.ArtifactSaver
	gateway       ports.EmailGateway
	log           *slog.Logger

	onProgress func(domain.Progress)
	mu         sync.Mutex
	progress   domain.Progress
	inFlight   atomic.Bool
}

// NewExportTranscriptUseCase создает новый экземпляр ExportTranscriptUseCase.
func NewExportTranscriptUseCase(
	transcriptCfg config.Transcript,
	extractor ports.ExtractionService,
	media ports.MediaResolver,
	downloadFmt ports.Formatter,
	emailFmt ports.Formatter,
	bundler ports.BundleBuilder,
	saver ports.ArtifactSaver,
	gateway ports.EmailGateway,
	opts ...Option,
) *ExportTranscriptUseCase {
	uc := &ExportTranscriptUseCase{
		transcriptCfg: transcriptCfg,
		extractor:     extractor,
		media:         media,
		downloadFmt:   downloadFmt,
		emailFmt:      emailFmt,
		bundler:       bundler,
		saver:         saver,
		gateway:       gateway,
		log:           slog.Default(),
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}

// Progress возвращает текущее значение прогресса экспорта.
func (uc *ExportTranscriptUseCase) Progress() domain.Progress {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return uc.progress
}

// resetProgress сбрасывает прогресс в 0 при старте нового экспорта.
func (uc *ExportTranscriptUseCase) resetProgress() {
	uc.mu.Lock()
	uc.progress = domain.Progress{Percent: 0, Generating: true}
	p := uc.progress
	uc.mu.Unlock()

	if uc.onProgress != nil {
		uc.onProgress(p)
	}
}

// setProgress обновляет прогресс. Значение монотонно не убывает в пределах
// одного экспорта.
func (uc *ExportTranscriptUseCase) setProgress(percent int, generating bool) {
	uc.mu.Lock()
	if percent < uc.progress.Percent {
		percent = uc.progress.Percent
	}
	uc.progress = domain.Progress{Percent: percent, Generating: generating}
	p := uc.progress
	uc.mu.Unlock()

	if uc.onProgress != nil {
		uc.onProgress(p)
	}
}

// prepared — общий результат начальных стадий обоих потоков.
type prepared struct {
	records      []domain.TranscriptRecord
	customerName string
	agentNames   []string
}

// prepare выполняет стадии, общие для скачивания и отправки на почту:
// извлечение записей и разрешение имен участников.
func (uc *ExportTranscriptUseCase) prepare(snapshot *domain.ConversationSnapshot) (*prepared, error) {
	records := uc.extractor.Extract(snapshot.Messages, snapshot.Users)
	if len(records) == 0 {
		return nil, ErrEmptyTranscript
	}

	customerName := uc.extractor.CustomerName(snapshot.PreEngagement.Name, records)
	agentNames := uc.extractor.AgentNames(customerName, records)

	return &prepared{
		records:      records,
		customerName: customerName,
		agentNames:   agentNames,
	}, nil
}

// Download выполняет поток скачивания: извлечение, форматирование, разрешение
// медиа, упаковка и сохранение артефакта. Контрольные точки прогресса:
// 10, 25, 50, 75, 100.
func (uc *ExportTranscriptUseCase) Download(ctx context.Context, snapshot *domain.ConversationSnapshot) (*domain.Artifact, error) {
	if !uc.inFlight.CompareAndSwap(false, true) {
		return nil, ErrExportInFlight
	}
	defer uc.inFlight.Store(false)

	uc.resetProgress()
	uc.setProgress(progressStarted, true)

	prep, err := uc.prepare(snapshot)
	if err != nil {
		return nil, err
	}

	transcript, err := uc.downloadFmt.Format(prep.customerName, prep.agentNames, prep.records)
	if err != nil {
		return nil, fmt.Errorf("не удалось отформатировать транскрипт: %w", err)
	}
	uc.setProgress(progressFormatted, true)

	mediaInfo := uc.media.ResolveAll(ctx, prep.records)
	uc.setProgress(progressResolved, true)

	baseName := services.BundleBaseName(prep.customerName, prep.agentNames, prep.records[0].Timestamp)
	uc.setProgress(progressGenerated, false)

	artifact, err := uc.buildArtifact(ctx, transcript, mediaInfo, prep.records, baseName)
	if err != nil {
		uc.log.ErrorContext(ctx, "Failed building transcript artifact", "base_name", baseName, "error", err)
		return nil, err
	}

	if err := uc.saver.Save(ctx, artifact); err != nil {
		return nil, fmt.Errorf("не удалось сохранить артефакт: %w", err)
	}
	uc.setProgress(progressDone, false)

	uc.log.InfoContext(ctx, "Transcript download export finished",
		"artifact", artifact.Name,
		"records", len(prep.records),
		"media", len(mediaInfo),
	)
	return artifact, nil
}

// buildArtifact собирает итоговый артефакт потока скачивания.
func (uc *ExportTranscriptUseCase) buildArtifact(ctx context.Context, transcript []byte, mediaInfo []domain.MediaInfo, records []domain.TranscriptRecord, baseName string) (*domain.Artifact, error) {
	// Альтернативные форматы (например, таблица) медиа не упаковывают.
	if uc.downloadFmt.FileExtension() != ".txt" {
		return &domain.Artifact{
			Name:        baseName + uc.downloadFmt.FileExtension(),
			ContentType: uc.downloadFmt.ContentType(),
			Data:        transcript,
		}, nil
	}

	// Имена в архиве выравниваются по фактически разрешенным медиа: если
	// часть вложений выбыла, дедупликация поверх полного списка записей
	// сместила бы имена относительно содержимого.
	filenames := services.UniqueMediaFilenames(mediaInfo)
	return uc.bundler.Build(ctx, transcript, mediaInfo, filenames, baseName)
}

// Email выполняет поток отправки на почту: извлечение, разрешение медиа,
// форматирование HTML и отправка на бэкенд. Контрольные точки прогресса:
// 10, 50, 75, 100. Неуспех бэкенда возвращается вызывающей стороне, но
// признак выполняющегося экспорта в любом случае снимается.
func (uc *ExportTranscriptUseCase) Email(ctx context.Context, snapshot *domain.ConversationSnapshot) error {
	if !uc.inFlight.CompareAndSwap(false, true) {
		return ErrExportInFlight
	}
	defer uc.inFlight.Store(false)

	uc.resetProgress()
	uc.setProgress(progressStarted, true)

	recipient := snapshot.PreEngagement.Email
	if recipient == "" {
		return ErrNoRecipient
	}

	prep, err := uc.prepare(snapshot)
	if err != nil {
		return err
	}
	uniqueFilenames := services.UniqueFilenames(prep.records)

	mediaInfo := uc.media.ResolveAll(ctx, prep.records)
	uc.setProgress(progressResolved, true)

	transcript, err := uc.emailFmt.Format(prep.customerName, prep.agentNames, prep.records)
	if err != nil {
		return fmt.Errorf("не удалось отформатировать транскрипт: %w", err)
	}
	uc.setProgress(progressGenerated, false)

	req := domain.EmailRequest{
		RecipientAddress: recipient,
		Subject:          uc.transcriptCfg.EmailSubject(prep.agentNames),
		Text:             uc.transcriptCfg.EmailContent(prep.customerName, string(transcript)),
		MediaInfo:        mediaInfo,
		UniqueFilenames:  uniqueFilenames,
	}

	if err := uc.gateway.SendTranscript(ctx, req); err != nil {
		uc.log.ErrorContext(ctx, "Failed emailing transcript", "recipient", recipient, "error", err)
		return fmt.Errorf("не удалось отправить транскрипт: %w", err)
	}
	uc.setProgress(progressDone, false)

	uc.log.InfoContext(ctx, "Transcript email export finished",
		"recipient", recipient,
		"records", len(prep.records),
		"media", len(mediaInfo),
	)
	return nil
}
