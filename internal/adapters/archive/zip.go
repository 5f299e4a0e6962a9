package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"webchat-transcript-exporter/internal/domain"
	"webchat-transcript-exporter/internal/ports"
)

// ZipOption — функциональная опция для настройки ZipBundleBuilder.
type ZipOption func(*ZipBundleBuilder)

// WithHTTPClient устанавливает HTTP-клиент для загрузки медиафайлов.
func WithHTTPClient(c *http.Client) ZipOption {
	return func(b *ZipBundleBuilder) {
		if c != nil {
			b.httpClient = c
		}
	}
}

// WithLogger устанавливает логгер для сборщика.
func WithLogger(l *slog.Logger) ZipOption {
	return func(b *ZipBundleBuilder) {
		if l != nil {
			b.log = l
		}
	}
}

// ZipBundleBuilder реализует интерфейс BundleBuilder. Без медиафайлов
// артефактом является одиночный текстовый файл, иначе — zip-архив с папкой
// baseName, содержащей транскрипт и медиафайлы.
type ZipBundleBuilder struct {
	httpClient *http.Client
	log        *slog.Logger
}

// NewZipBundleBuilder создает новый экземпляр ZipBundleBuilder.
func NewZipBundleBuilder(opts ...ZipOption) *ZipBundleBuilder {
	b := &ZipBundleBuilder{
		httpClient: &http.Client{
			Timeout: 30 * time.Second, // Общий таймаут для запросов
		},
		log: slog.Default(),
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

var _ ports.BundleBuilder = (*ZipBundleBuilder)(nil)

// Build собирает итоговый артефакт. Загрузка каждого медиафайла независима:
// неудачная загрузка логируется, элемент в архив не попадает, сборка
// продолжается. Ошибка кодирования архива прерывает сборку целиком —
// частичный или поврежденный артефакт наружу не отдается.
func (b *ZipBundleBuilder) Build(ctx context.Context, transcript []byte, media []domain.MediaInfo, filenames []string, baseName string) (*domain.Artifact, error) {
	if len(media) == 0 {
		return &domain.Artifact{
			Name:        baseName + ".txt",
			ContentType: "text/plain",
			Data:        transcript,
		}, nil
	}

	if len(filenames) != len(media) {
		return nil, fmt.Errorf("количество имен файлов (%d) не совпадает с количеством медиа (%d)", len(filenames), len(media))
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	entry, err := zw.Create(baseName + "/" + baseName + ".txt")
	if err != nil {
		return nil, fmt.Errorf("failed to create transcript entry: %w", err)
	}
	if _, err := entry.Write(transcript); err != nil {
		return nil, fmt.Errorf("failed to write transcript entry: %w", err)
	}

	for i, info := range media {
		if err := b.addMediaEntry(ctx, zw, baseName+"/"+filenames[i], info); err != nil {
			b.log.ErrorContext(ctx, "Failed zipping message attachment",
				"filename", info.Filename,
				"error", err,
			)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}

	return &domain.Artifact{
		Name:        baseName + ".zip",
		ContentType: "application/zip",
		Data:        buf.Bytes(),
	}, nil
}

// addMediaEntry скачивает один медиафайл по его временному URL и записывает
// его в архив под уже дедуплицированным именем.
func (b *ZipBundleBuilder) addMediaEntry(ctx context.Context, zw *zip.Writer, entryName string, info domain.MediaInfo) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, info.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	// Тело читается целиком до создания записи, чтобы обрыв загрузки
	// не оставил в архиве усеченный элемент.
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read media body: %w", err)
	}

	entry, err := zw.Create(entryName)
	if err != nil {
		return fmt.Errorf("failed to create archive entry: %w", err)
	}
	if _, err := entry.Write(body); err != nil {
		return fmt.Errorf("failed to write archive entry: %w", err)
	}

	return nil
}
