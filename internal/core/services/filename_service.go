package services

import (
	"fmt"
	"path"
	"strings"
	"time"
	"unicode"

	"webchat-transcript-exporter/internal/domain"
)

// UniqueFilenames возвращает бесколлизионное имя файла для каждого вложения
// транскрипта в порядке обхода: сначала по записям, внутри записи — по списку
// медиа. Первое вхождение базового имени остается как есть, N-е получает
// суффикс "-<N-1>" перед расширением.
func UniqueFilenames(records []domain.TranscriptRecord) []string {
	var names []string
	for _, rec := range records {
		for _, media := range rec.Media {
			names = append(names, media.Filename)
		}
	}
	return DedupeNames(names)
}

// UniqueMediaFilenames возвращает бесколлизионные имена для уже разрешенного
// списка медиа. Применяется при сборке архива, когда часть вложений выбыла
// из-за ошибок разрешения и выравнивание по всем записям нарушено.
func UniqueMediaFilenames(media []domain.MediaInfo) []string {
	names := make([]string, 0, len(media))
	for _, info := range media {
		names = append(names, info.Filename)
	}
	return DedupeNames(names)
}

// DedupeNames устраняет коллизии в последовательности имен файлов, сохраняя
// порядок: N-е вхождение базового имени получает суффикс "-<N-1>" перед
// расширением. Все возвращаемые имена попарно различны.
func DedupeNames(names []string) []string {
	if len(names) == 0 {
		return nil
	}

	filenames := make([]string, 0, len(names))
	occurrences := make(map[string]int) // счетчик вхождений базового имени

	for _, name := range names {
		n := occurrences[name]
		occurrences[name] = n + 1

		if n == 0 {
			filenames = append(filenames, name)
			continue
		}

		ext := path.Ext(name)
		stem := strings.TrimSuffix(name, ext)
		filenames = append(filenames, fmt.Sprintf("%s-%d%s", stem, n, ext))
	}

	return filenames
}

// BundleBaseName формирует базовое имя артефакта:
// "chat-with-<клиент>", далее "-and-<агент>" для каждого агента,
// затем URL-безопасный слаг локальной даты первой записи, все в нижнем регистре.
func BundleBaseName(customerName string, agentNames []string, firstRecord time.Time) string {
	var sb strings.Builder
	sb.WriteString("chat-with-")
	sb.WriteString(customerName)
	for _, name := range agentNames {
		sb.WriteString("-and-")
		sb.WriteString(name)
	}
	sb.WriteString("-")
	sb.WriteString(slugify(firstRecord.Local().Format("Mon Jan 2 2006")))

	return strings.ToLower(sb.String())
}

// slugify приводит строку к URL-безопасному виду: пробелы заменяются дефисом,
// остальные небезопасные символы отбрасываются.
func slugify(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			sb.WriteRune('-')
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == '.':
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
