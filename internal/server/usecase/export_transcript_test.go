package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webchat-transcript-exporter/internal/adapters/format"
	"webchat-transcript-exporter/internal/adapters/storage"
	"webchat-transcript-exporter/internal/core/services"
	"webchat-transcript-exporter/internal/domain"
	"webchat-transcript-exporter/internal/pkg/config"
)

// stubResolver возвращает заранее заданный список медиа.
type stubResolver struct {
	media   []domain.MediaInfo
	release chan struct{} // если установлен, разрешение блокируется до закрытия
}

func (s *stubResolver) ResolveAll(ctx context.Context, records []domain.TranscriptRecord) []domain.MediaInfo {
	if s.release != nil {
		<-s.release
	}
	return s.media
}

// captureBundler запоминает аргументы сборки и возвращает фиксированный артефакт.
type captureBundler struct {
	transcript []byte
	media      []domain.MediaInfo
	filenames  []string
	baseName   string
	called     bool
}

func (b *captureBundler) Build(ctx context.Context, transcript []byte, media []domain.MediaInfo, filenames []string, baseName string) (*domain.Artifact, error) {
	b.called = true
	b.transcript = transcript
	b.media = media
	b.filenames = filenames
	b.baseName = baseName
	return &domain.Artifact{Name: baseName + ".zip", ContentType: "application/zip", Data: []byte("zip")}, nil
}

// captureGateway запоминает отправленный запрос.
type captureGateway struct {
	req    domain.EmailRequest
	err    error
	called bool
}

func (g *captureGateway) SendTranscript(ctx context.Context, req domain.EmailRequest) error {
	g.called = true
	g.req = req
	return g.err
}

// progressRecorder собирает последовательность обновлений прогресса.
type progressRecorder struct {
	mu      sync.Mutex
	updates []domain.Progress
}

func (r *progressRecorder) record(p domain.Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, p)
}

func (r *progressRecorder) percents() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	percents := make([]int, 0, len(r.updates))
	for _, p := range r.updates {
		percents = append(percents, p.Percent)
	}
	return percents
}

func testSnapshot() *domain.ConversationSnapshot {
	return &domain.ConversationSnapshot{
		Messages: []domain.Message{
			{Author: "user123", Body: "hi", Timestamp: time.Date(2026, 8, 29, 10, 0, 0, 0, time.Local)},
			{
				Author:    "agent456",
				Body:      "hello",
				Timestamp: time.Date(2026, 8, 29, 10, 1, 0, 0, time.Local),
				AttachedMedia: []domain.MediaAttachment{
					{Filename: "photo.png", ContentType: "image/png", ContentURL: "https://media.example/a"},
					{Filename: "photo.png", ContentType: "image/png", ContentURL: "https://media.example/b"},
				},
			},
		},
		Users: []domain.User{
			{Identity: "user123", FriendlyName: "Alice"},
			{Identity: "agent456", FriendlyName: "Bob"},
		},
		PreEngagement: domain.PreEngagement{Name: "Alice", Email: "alice@example.com"},
	}
}

func newTestUseCase(transcriptCfg config.Transcript, resolver *stubResolver, bundler *captureBundler, saver *storage.MemorySaver, gateway *captureGateway, opts ...Option) *ExportTranscriptUseCase {
	opts = append(opts, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	return NewExportTranscriptUseCase(
		transcriptCfg,
		services.NewExtractionService(),
		resolver,
		format.NewDownloadFormatter(),
		format.NewEmailFormatter(),
		bundler,
		saver,
		gateway,
		opts...,
	)
}

func TestExportTranscriptUseCase_Download(t *testing.T) {
	t.Run("Контрольные точки прогресса потока скачивания", func(t *testing.T) {
		recorder := &progressRecorder{}
		resolver := &stubResolver{media: []domain.MediaInfo{
			{URL: "https://media.example/a", Filename: "photo.png", Type: "image/png"},
			{URL: "https://media.example/b", Filename: "photo.png", Type: "image/png"},
		}}
		bundler := &captureBundler{}
		saver := storage.NewMemorySaver()

		uc := newTestUseCase(config.Transcript{DownloadEnabled: true}, resolver, bundler, saver, &captureGateway{},
			WithProgressFunc(recorder.record))

		artifact, err := uc.Download(context.Background(), testSnapshot())
		require.NoError(t, err)
		require.NotNil(t, artifact)

		require.Equal(t, []int{0, 10, 25, 50, 75, 100}, recorder.percents())

		// Фаза генерации сменяется фазой передачи на 75%
		updates := recorder.updates
		assert.True(t, updates[1].Generating)
		assert.True(t, updates[3].Generating)
		assert.False(t, updates[4].Generating)
		assert.False(t, updates[5].Generating)
	})

	t.Run("Артефакт сохраняется, имена в архиве дедуплицированы", func(t *testing.T) {
		resolver := &stubResolver{media: []domain.MediaInfo{
			{URL: "https://media.example/a", Filename: "photo.png"},
			{URL: "https://media.example/b", Filename: "photo.png"},
		}}
		bundler := &captureBundler{}
		saver := storage.NewMemorySaver()

		uc := newTestUseCase(config.Transcript{DownloadEnabled: true}, resolver, bundler, saver, &captureGateway{})

		artifact, err := uc.Download(context.Background(), testSnapshot())
		require.NoError(t, err)

		assert.True(t, bundler.called)
		assert.Equal(t, "chat-with-alice-and-bob-sat-aug-29-2026", bundler.baseName)
		assert.Equal(t, []string{"photo.png", "photo-1.png"}, bundler.filenames)
		assert.Equal(t, artifact, saver.Artifact())
	})

	t.Run("Имена выравниваются по фактически разрешенным медиа", func(t *testing.T) {
		// Второе вложение выбыло при разрешении: имена считаются по выжившим.
		resolver := &stubResolver{media: []domain.MediaInfo{
			{URL: "https://media.example/b", Filename: "photo.png"},
		}}
		bundler := &captureBundler{}

		uc := newTestUseCase(config.Transcript{DownloadEnabled: true}, resolver, bundler, storage.NewMemorySaver(), &captureGateway{})

		_, err := uc.Download(context.Background(), testSnapshot())
		require.NoError(t, err)

		assert.Equal(t, []string{"photo.png"}, bundler.filenames)
		require.Len(t, bundler.media, 1)
		assert.Equal(t, "https://media.example/b", bundler.media[0].URL)
	})

	t.Run("Альтернативный формат отдается без упаковки медиа", func(t *testing.T) {
		resolver := &stubResolver{media: []domain.MediaInfo{{URL: "https://media.example/a", Filename: "photo.png"}}}
		bundler := &captureBundler{}

		uc := newTestUseCase(config.Transcript{DownloadEnabled: true}, resolver, bundler, storage.NewMemorySaver(), &captureGateway{},
			WithDownloadFormatter(format.NewExcelFormatter()))

		artifact, err := uc.Download(context.Background(), testSnapshot())
		require.NoError(t, err)

		assert.False(t, bundler.called)
		assert.Equal(t, "chat-with-alice-and-bob-sat-aug-29-2026.xlsx", artifact.Name)
	})

	t.Run("Пустой транскрипт отклоняется", func(t *testing.T) {
		uc := newTestUseCase(config.Transcript{DownloadEnabled: true}, &stubResolver{}, &captureBundler{}, storage.NewMemorySaver(), &captureGateway{})

		artifact, err := uc.Download(context.Background(), &domain.ConversationSnapshot{})

		assert.ErrorIs(t, err, ErrEmptyTranscript)
		assert.Nil(t, artifact)
	})

	t.Run("Повторный вызов во время экспорта отклоняется", func(t *testing.T) {
		release := make(chan struct{})
		resolver := &stubResolver{release: release}
		uc := newTestUseCase(config.Transcript{DownloadEnabled: true}, resolver, &captureBundler{}, storage.NewMemorySaver(), &captureGateway{})

		firstDone := make(chan error, 1)
		go func() {
			_, err := uc.Download(context.Background(), testSnapshot())
			firstDone <- err
		}()

		// Дожидаемся, пока первый экспорт заблокируется на разрешении медиа
		require.Eventually(t, func() bool {
			return uc.Progress().Percent >= 25
		}, time.Second, 10*time.Millisecond)

		_, err := uc.Download(context.Background(), testSnapshot())
		assert.ErrorIs(t, err, ErrExportInFlight)

		close(release)
		require.NoError(t, <-firstDone)

		// После завершения признак снят и новый экспорт проходит
		_, err = uc.Download(context.Background(), testSnapshot())
		assert.NoError(t, err)
	})
}

func TestExportTranscriptUseCase_Email(t *testing.T) {
	transcriptCfg := config.Transcript{
		EmailEnabled:         true,
		EmailSubjectTemplate: "Беседа с {{agents}}",
		EmailContentTemplate: "<div>Транскрипт беседы с {{customer}}</div>{{transcript}}",
	}

	t.Run("Контрольные точки прогресса потока отправки", func(t *testing.T) {
		recorder := &progressRecorder{}
		uc := newTestUseCase(transcriptCfg, &stubResolver{}, &captureBundler{}, storage.NewMemorySaver(), &captureGateway{},
			WithProgressFunc(recorder.record))

		err := uc.Email(context.Background(), testSnapshot())
		require.NoError(t, err)

		assert.Equal(t, []int{0, 10, 50, 75, 100}, recorder.percents())
	})

	t.Run("Запрос к бэкенду содержит получателя, шаблоны и имена файлов", func(t *testing.T) {
		gateway := &captureGateway{}
		resolver := &stubResolver{media: []domain.MediaInfo{
			{URL: "https://media.example/a", Filename: "photo.png", Type: "image/png"},
		}}

		uc := newTestUseCase(transcriptCfg, resolver, &captureBundler{}, storage.NewMemorySaver(), gateway)

		err := uc.Email(context.Background(), testSnapshot())
		require.NoError(t, err)
		require.True(t, gateway.called)

		assert.Equal(t, "alice@example.com", gateway.req.RecipientAddress)
		assert.Equal(t, "Беседа с Bob", gateway.req.Subject)
		assert.Contains(t, gateway.req.Text, "Транскрипт беседы с Alice")
		assert.Contains(t, gateway.req.Text, "<br/>")
		// Имена считаются по всем вложениям записей, независимо от исхода разрешения
		assert.Equal(t, []string{"photo.png", "photo-1.png"}, gateway.req.UniqueFilenames)
		assert.Equal(t, resolver.media, gateway.req.MediaInfo)
	})

	t.Run("Отсутствие получателя отклоняется", func(t *testing.T) {
		gateway := &captureGateway{}
		uc := newTestUseCase(transcriptCfg, &stubResolver{}, &captureBundler{}, storage.NewMemorySaver(), gateway)

		snapshot := testSnapshot()
		snapshot.PreEngagement.Email = ""

		err := uc.Email(context.Background(), snapshot)

		assert.ErrorIs(t, err, ErrNoRecipient)
		assert.False(t, gateway.called)
	})

	t.Run("Неуспех бэкенда не оставляет экспорт в выполняющемся состоянии", func(t *testing.T) {
		gateway := &captureGateway{err: errors.New("backend unavailable")}
		uc := newTestUseCase(transcriptCfg, &stubResolver{}, &captureBundler{}, storage.NewMemorySaver(), gateway)

		err := uc.Email(context.Background(), testSnapshot())
		require.Error(t, err)

		// Повторный экспорт после неуспеха допускается
		gateway.err = nil
		assert.NoError(t, uc.Email(context.Background(), testSnapshot()))
	})

	t.Run("Прогресс сбрасывается при старте нового экспорта", func(t *testing.T) {
		recorder := &progressRecorder{}
		uc := newTestUseCase(transcriptCfg, &stubResolver{}, &captureBundler{}, storage.NewMemorySaver(), &captureGateway{},
			WithProgressFunc(recorder.record))

		require.NoError(t, uc.Email(context.Background(), testSnapshot()))
		require.NoError(t, uc.Email(context.Background(), testSnapshot()))

		assert.Equal(t, []int{0, 10, 50, 75, 100, 0, 10, 50, 75, 100}, recorder.percents())
	})
}
