package log

import (
	"context"
	"log/slog"
	"regexp"
)

// EmailMaskerHandler - обертка для slog.Handler, которая маскирует адреса
// электронной почты в логах. Адрес получателя транскрипта — персональные
// данные и не должен попадать в журналы в открытом виде.
type EmailMaskerHandler struct {
	handler slog.Handler
}

// NewEmailMaskerHandler создает новый обработчик с маскировкой адресов
func NewEmailMaskerHandler(handler slog.Handler) *EmailMaskerHandler {
	return &EmailMaskerHandler{
		handler: handler,
	}
}

// маскируем адреса вида local@domain, оставляя первый символ локальной части
var emailRegex = regexp.MustCompile(`([A-Za-z0-9._%+-])[A-Za-z0-9._%+-]*@([A-Za-z0-9.-]+\.[A-Za-z]{2,})`)

// maskEmails заменяет найденные адреса на маску
func maskEmails(text string) string {
	return emailRegex.ReplaceAllString(text, "$1***@$2")
}

// Enabled реализует интерфейс slog.Handler
func (h *EmailMaskerHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle реализует интерфейс slog.Handler
func (h *EmailMaskerHandler) Handle(ctx context.Context, record slog.Record) error {
	// Создаем новую запись только с маскированными значениями. Клонировать
	// исходную нельзя: клон сохраняет оригинальные атрибуты, и немаскированный
	// адрес ушел бы в журнал рядом с маскированным.
	r := slog.NewRecord(record.Time, record.Level, maskEmails(record.Message), record.PC)

	// Итерируемся по атрибутам оригинальной записи и добавляем их маскированные версии.
	record.Attrs(func(a slog.Attr) bool {
		r.AddAttrs(slog.Attr{
			Key:   a.Key,
			Value: maskAttributeValue(a.Value),
		})
		return true
	})

	return h.handler.Handle(ctx, r)
}

// WithAttrs реализует интерфейс slog.Handler
func (h *EmailMaskerHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	maskedAttrs := make([]slog.Attr, len(attrs))
	for i, attr := range attrs {
		maskedAttrs[i] = slog.Attr{
			Key:   attr.Key,
			Value: maskAttributeValue(attr.Value),
		}
	}
	return &EmailMaskerHandler{
		handler: h.handler.WithAttrs(maskedAttrs),
	}
}

// WithGroup реализует интерфейс slog.Handler
func (h *EmailMaskerHandler) WithGroup(name string) slog.Handler {
	return &EmailMaskerHandler{
		handler: h.handler.WithGroup(name),
	}
}

// maskAttributeValue рекурсивно маскирует значения атрибутов
func maskAttributeValue(value slog.Value) slog.Value {
	switch value.Kind() {
	case slog.KindString:
		return slog.StringValue(maskEmails(value.String()))
	case slog.KindAny:
		// Ошибки преобразуются в строку и маскируются, как и обычный текст.
		if err, ok := value.Any().(error); ok {
			return slog.StringValue(maskEmails(err.Error()))
		}
		return value
	case slog.KindGroup:
		group := value.Group()
		maskedGroup := make([]slog.Attr, len(group))
		for i, attr := range group {
			maskedGroup[i] = slog.Attr{
				Key:   attr.Key,
				Value: maskAttributeValue(attr.Value),
			}
		}
		return slog.GroupValue(maskedGroup...)
	default:
		// Для других типов возвращаем оригинальное значение
		return value
	}
}

// NewMaskedLogger создает новый экземпляр slog.Logger с маскировкой адресов
func NewMaskedLogger(handler slog.Handler) *slog.Logger {
	return slog.New(NewEmailMaskerHandler(handler))
}
