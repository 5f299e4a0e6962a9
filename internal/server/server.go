package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"webchat-transcript-exporter/internal/adapters/storage"
	"webchat-transcript-exporter/internal/cache"
	"webchat-transcript-exporter/internal/domain"
	"webchat-transcript-exporter/internal/pkg/config"
	"webchat-transcript-exporter/internal/ports"
	"webchat-transcript-exporter/internal/server/usecase"
)

// Pipeline — собранные компоненты конвейера экспорта, разделяемые задачами.
// Все компоненты не хранят состояние; оркестратор создается на каждую задачу.
type Pipeline struct {
	Parser      ports.SnapshotParser
	Extractor   ports.ExtractionService
	Media       ports.MediaResolver
	DownloadFmt ports.Formatter
	EmailFmt    ports.Formatter
	ExcelFmt    ports.Formatter
	Bundler     ports.BundleBuilder
	Gateway     ports.EmailGateway
}

// Server представляет HTTP-сервер
type Server struct {
	HTTPServer *http.Server
	cfg        *config.Config
	taskStore  *TaskStore
	cacheStore *cache.CacheStore
	pipeline   Pipeline
}

// New создает новый экземпляр Server
func New(cfg *config.Config, pipeline Pipeline, taskStore *TaskStore, cacheStore *cache.CacheStore) (*Server, error) {
	s := &Server{
		cfg:        cfg,
		taskStore:  taskStore,
		cacheStore: cacheStore,
		pipeline:   pipeline,
	}

	chiRouter := chi.NewRouter()

	// Промежуточное ПО
	chiRouter.Use(middleware.Logger)
	chiRouter.Use(middleware.Recoverer)

	// Конечная точка для проверки работоспособности
	chiRouter.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "ok",
		})
	})

	// Маршруты API
	chiRouter.Route("/api/v1", func(r chi.Router) {
		if cfg.Server.AuthToken != "" {
			r.Use(s.authMiddleware)
		}

		// Конечная точка для запуска экспорта на скачивание
		r.Post("/export", s.handleExportDownload)

		// Конечная точка для запуска экспорта на почту
		r.Post("/export/email", s.handleExportEmail)

		// Конечная точка для проверки статуса задачи
		r.Get("/tasks/{taskID}", s.handleTaskStatus)

		// Конечная точка для получения готового артефакта
		r.Get("/tasks/{taskID}/artifact", s.handleTaskArtifact)
	})

	s.HTTPServer = &http.Server{
		Addr:         cfg.Address(),
		Handler:      chiRouter,
		ReadTimeout:  config.DefaultReadTimeout,
		WriteTimeout: config.DefaultWriteTimeout,
		IdleTimeout:  config.DefaultIdleTimeout,
	}

	// Запуск тикеров для очистки просроченных задач и элементов кеша
	ctx := context.Background()
	s.taskStore.StartCleanupTicker(ctx, config.DefaultCleanupInterval)
	s.cacheStore.StartCleanupTicker(ctx, config.DefaultCleanupInterval)

	return s, nil
}

// authMiddleware проверяет токен авторизации, если он задан в конфигурации.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+s.cfg.Server.AuthToken {
			http.Error(w, "Неверный токен авторизации", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// readSnapshot читает и разбирает снимок беседы из тела запроса.
// Возвращает также сырые байты: они служат ключом кэша артефактов.
func (s *Server) readSnapshot(r *http.Request) (*domain.ConversationSnapshot, []byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, config.DefaultMaxSnapshotMB<<20))
	if err != nil {
		return nil, nil, fmt.Errorf("не удалось прочитать тело запроса: %w", err)
	}

	snapshot, err := s.pipeline.Parser.Parse(body)
	if err != nil {
		return nil, nil, fmt.Errorf("не удалось разобрать снимок беседы: %w", err)
	}

	return snapshot, body, nil
}

// newExportUseCase создает оркестратор для одной задачи, привязывая его
// прогресс к записи задачи в хранилище.
func (s *Server) newExportUseCase(taskID string, saver ports.ArtifactSaver, downloadFmt ports.Formatter) *usecase.ExportTranscriptUseCase {
	return usecase.NewExportTranscriptUseCase(
		s.cfg.Transcript,
		s.pipeline.Extractor,
		s.pipeline.Media,
		s.pipeline.DownloadFmt,
		s.pipeline.EmailFmt,
		s.pipeline.Bundler,
		saver,
		s.pipeline.Gateway,
		usecase.WithDownloadFormatter(downloadFmt),
		usecase.WithProgressFunc(func(p domain.Progress) {
			_ = s.taskStore.UpdateTaskProgress(taskID, p)
		}),
	)
}

// taskContext создает контекст задачи с таймаутом из конфигурации.
func (s *Server) taskContext() (context.Context, context.CancelFunc) {
	if s.cfg.Export.TaskTimeoutSeconds > 0 {
		return context.WithTimeout(context.Background(), time.Duration(s.cfg.Export.TaskTimeoutSeconds)*time.Second)
	}
	return context.WithCancel(context.Background())
}

func (s *Server) handleExportDownload(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.Transcript.DownloadEnabled {
		http.Error(w, "Скачивание транскрипта отключено", http.StatusForbidden)
		return
	}

	snapshot, body, err := s.readSnapshot(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Альтернативный формат запрашивается параметром format
	downloadFmt := s.pipeline.DownloadFmt
	format := r.URL.Query().Get("format")
	if format == "xlsx" {
		downloadFmt = s.pipeline.ExcelFmt
	}

	taskID := uuid.NewString()
	s.taskStore.CreateTask(taskID, config.DefaultTaskTTL)

	// Кэш по хешу снимка: формат участвует в ключе
	cacheKey := cache.CalculateSnapshotHash(append([]byte(format+":"), body...))
	if cachedItem, found := s.cacheStore.Get(cacheKey); found {
		slog.Info("Попадание в кеш для снимка беседы", "hash", cacheKey, "task_id", taskID)
		_ = s.taskStore.UpdateTaskProgress(taskID, domain.Progress{Percent: 100})
		_ = s.taskStore.UpdateTaskArtifact(taskID, cachedItem.Artifact)
		s.respondAccepted(w, taskID)
		return
	}

	// Запуск экспорта в горутине
	go func() {
		_ = s.taskStore.UpdateTaskStatus(taskID, TaskStatusProcessing)

		taskCtx, cancel := s.taskContext()
		defer cancel()

		saver := storage.NewMemorySaver()
		uc := s.newExportUseCase(taskID, saver, downloadFmt)

		artifact, err := uc.Download(taskCtx, snapshot)
		if err != nil {
			_ = s.taskStore.UpdateTaskError(taskID, err.Error())
			return
		}

		_ = s.taskStore.UpdateTaskArtifact(taskID, artifact)
		s.cacheStore.Put(cacheKey, artifact, s.cfg.CacheTTL())
	}()

	s.respondAccepted(w, taskID)
}

func (s *Server) handleExportEmail(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.Transcript.EmailEnabled {
		http.Error(w, "Отправка транскрипта на почту отключена", http.StatusForbidden)
		return
	}

	snapshot, _, err := s.readSnapshot(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	taskID := uuid.NewString()
	s.taskStore.CreateTask(taskID, config.DefaultTaskTTL)

	// Запуск экспорта в горутине
	go func() {
		_ = s.taskStore.UpdateTaskStatus(taskID, TaskStatusProcessing)

		taskCtx, cancel := s.taskContext()
		defer cancel()

		uc := s.newExportUseCase(taskID, storage.NewMemorySaver(), s.pipeline.DownloadFmt)

		if err := uc.Email(taskCtx, snapshot); err != nil {
			_ = s.taskStore.UpdateTaskError(taskID, err.Error())
			return
		}

		_ = s.taskStore.UpdateTaskStatus(taskID, TaskStatusCompleted)
	}()

	s.respondAccepted(w, taskID)
}

func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	task, err := s.taskStore.GetTask(taskID)
	if err != nil {
		http.Error(w, "Задача не найдена", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"task_id":       task.ID,
		"status":        task.Status,
		"progress":      task.Progress.Percent,
		"generating":    task.Progress.Generating,
		"error_message": task.ErrorMessage,
	})
}

func (s *Server) handleTaskArtifact(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	task, err := s.taskStore.GetTask(taskID)
	if err != nil {
		http.Error(w, "Задача не найдена", http.StatusNotFound)
		return
	}

	if task.Status != TaskStatusCompleted {
		http.Error(w, "Задача не завершена", http.StatusBadRequest)
		return
	}
	if task.Artifact == nil {
		http.Error(w, "У задачи нет артефакта", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", task.Artifact.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", task.Artifact.Name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(task.Artifact.Data)
}

// respondAccepted возвращает идентификатор созданной задачи.
func (s *Server) respondAccepted(w http.ResponseWriter, taskID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"task_id": taskID})
}

// ListenAndServe запускает HTTP-сервер
func (s *Server) ListenAndServe() error {
	err := s.HTTPServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown корректно завершает работу HTTP-сервера
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Завершение работы HTTP-сервера")
	return s.HTTPServer.Shutdown(ctx)
}
