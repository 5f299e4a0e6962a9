// Package config предоставляет управление конфигурацией приложения
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Server содержит конфигурацию сервера
type Server struct {
	Host                   string `json:"host" yaml:"host"`
	Port                   int    `json:"port" yaml:"port"`
	AuthToken              string `json:"auth_token,omitempty" yaml:"auth_token,omitempty"`
	ShutdownTimeoutSeconds int    `json:"shutdown_timeout_seconds" yaml:"shutdown_timeout_seconds"`
}

// Backend содержит конфигурацию контактной конечной точки, отправляющей
// транскрипт на почту
type Backend struct {
	EmailURL              string `json:"email_url" yaml:"email_url"`
	AuthToken             string `json:"auth_token,omitempty" yaml:"auth_token,omitempty"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds" yaml:"request_timeout_seconds"`
}

// Export содержит конфигурацию конвейера экспорта
type Export struct {
	MediaPoolSize       int `json:"media_pool_size" yaml:"media_pool_size"`
	MediaTimeoutSeconds int `json:"media_timeout_seconds" yaml:"media_timeout_seconds"`
	TaskTimeoutSeconds  int `json:"task_timeout_seconds" yaml:"task_timeout_seconds"` // 0 - без ограничений
	CacheTTLMinutes     int `json:"cache_ttl_minutes" yaml:"cache_ttl_minutes"`
}

// Transcript содержит распознаваемые опции транскрипта
type Transcript struct {
	DownloadEnabled bool `json:"download_enabled" yaml:"download_enabled"`
	EmailEnabled    bool `json:"email_enabled" yaml:"email_enabled"`
	// Шаблон темы письма; поддерживает подстановку {{agents}}.
	EmailSubjectTemplate string `json:"email_subject_template,omitempty" yaml:"email_subject_template,omitempty"`
	// Шаблон тела письма; поддерживает подстановки {{customer}} и {{transcript}}.
	EmailContentTemplate string `json:"email_content_template,omitempty" yaml:"email_content_template,omitempty"`
}

// Logging содержит конфигурацию логирования
type Logging struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // json, text
}

// Config содержит конфигурацию приложения
type Config struct {
	Server     Server     `json:"server" yaml:"server"`
	Backend    Backend    `json:"backend" yaml:"backend"`
	Export     Export     `json:"export" yaml:"export"`
	Transcript Transcript `json:"transcript" yaml:"transcript"`
	Logging    Logging    `json:"logging" yaml:"logging"`
}

// Address возвращает адрес прослушивания HTTP-сервера.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// MediaTimeout возвращает таймаут разрешения одного вложения.
func (c *Config) MediaTimeout() time.Duration {
	return time.Duration(c.Export.MediaTimeoutSeconds) * time.Second
}

// CacheTTL возвращает время жизни кэшированного артефакта.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Export.CacheTTLMinutes) * time.Minute
}

// EmailSubject строит тему письма из шаблона. Пустой шаблон дает пустую
// строку: поле опускается в запросе к бэкенду, и бэкенд обязан это допускать.
func (t Transcript) EmailSubject(agentNames []string) string {
	if t.EmailSubjectTemplate == "" {
		return ""
	}
	return strings.ReplaceAll(t.EmailSubjectTemplate, "{{agents}}", strings.Join(agentNames, ", "))
}

// EmailContent строит тело письма из шаблона. Пустой шаблон дает пустую строку.
func (t Transcript) EmailContent(customerName, transcript string) string {
	if t.EmailContentTemplate == "" {
		return ""
	}
	content := strings.ReplaceAll(t.EmailContentTemplate, "{{customer}}", customerName)
	return strings.ReplaceAll(content, "{{transcript}}", transcript)
}

// Validate проверяет согласованность конфигурации.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("некорректный порт сервера: %d", c.Server.Port)
	}
	if c.Transcript.EmailEnabled && c.Backend.EmailURL == "" {
		return fmt.Errorf("отправка на почту включена, но backend.email_url не задан")
	}
	if c.Export.MediaPoolSize <= 0 {
		return fmt.Errorf("export.media_pool_size должен быть положительным")
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("неизвестный уровень логирования: %s", c.Logging.Level)
	}
	return nil
}

// LoadConfig загружает конфигурацию приложения из переменных окружения, .env файла или config.yml
func LoadConfig() (*Config, error) {
	// Загрузка переменных окружения из .env файла, если он существует
	if err := godotenv.Load(); err != nil {
		// Если .env файла не существует, это нормально, мы будем полагаться на переменные окружения или config.yml
	}

	// Попытка загрузки из config.yml сначала
	cfg, err := loadFromYAML("config.yml")
	if err != nil {
		// Если загрузка YAML не удалась, используем переменные окружения
		return loadFromEnv()
	}

	return cfg, nil
}

// loadFromYAML загружает конфигурацию из YAML-файла.
func loadFromYAML(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config file %s: %w", path, err)
	}

	return cfg, nil
}

// loadFromEnv загружает конфигурацию из переменных окружения.
func loadFromEnv() (*Config, error) {
	cfg := defaultConfig()

	if host := os.Getenv("SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("некорректное значение SERVER_PORT: %w", err)
		}
		cfg.Server.Port = p
	}
	if token := os.Getenv("SERVER_AUTH_TOKEN"); token != "" {
		cfg.Server.AuthToken = token
	}
	if url := os.Getenv("BACKEND_EMAIL_URL"); url != "" {
		cfg.Backend.EmailURL = url
	}
	if token := os.Getenv("BACKEND_AUTH_TOKEN"); token != "" {
		cfg.Backend.AuthToken = token
	}
	if poolSize := os.Getenv("EXPORT_MEDIA_POOL_SIZE"); poolSize != "" {
		n, err := strconv.Atoi(poolSize)
		if err != nil {
			return nil, fmt.Errorf("некорректное значение EXPORT_MEDIA_POOL_SIZE: %w", err)
		}
		cfg.Export.MediaPoolSize = n
	}
	if enabled := os.Getenv("TRANSCRIPT_DOWNLOAD_ENABLED"); enabled != "" {
		cfg.Transcript.DownloadEnabled = enabled == "true"
	}
	if enabled := os.Getenv("TRANSCRIPT_EMAIL_ENABLED"); enabled != "" {
		cfg.Transcript.EmailEnabled = enabled == "true"
	}
	if subject := os.Getenv("TRANSCRIPT_EMAIL_SUBJECT"); subject != "" {
		cfg.Transcript.EmailSubjectTemplate = subject
	}
	if content := os.Getenv("TRANSCRIPT_EMAIL_CONTENT"); content != "" {
		cfg.Transcript.EmailContentTemplate = content
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		cfg.Logging.Format = format
	}

	return cfg, nil
}

// defaultConfig возвращает конфигурацию со значениями по умолчанию.
func defaultConfig() *Config {
	return &Config{
		Server: Server{
			Host:                   DefaultServerHost,
			Port:                   DefaultServerPort,
			ShutdownTimeoutSeconds: int(DefaultShutdownTimeout / time.Second),
		},
		Backend: Backend{
			RequestTimeoutSeconds: int(DefaultBackendTimeout / time.Second),
		},
		Export: Export{
			MediaPoolSize:       DefaultMediaPoolSize,
			MediaTimeoutSeconds: int(DefaultMediaTimeout / time.Second),
			TaskTimeoutSeconds:  int(DefaultTaskTimeout / time.Second),
			CacheTTLMinutes:     int(DefaultCacheTTL / time.Minute),
		},
		Transcript: Transcript{
			DownloadEnabled: true,
			EmailEnabled:    false,
		},
		Logging: Logging{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
