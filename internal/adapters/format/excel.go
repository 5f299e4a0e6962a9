package format

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"webchat-transcript-exporter/internal/domain"
	"webchat-transcript-exporter/internal/ports"
)

// ExcelFormatter реализует интерфейс Formatter для представления транскрипта
// в виде электронной таблицы: одна строка на запись. Медиафайлы в этот формат
// не упаковываются, перечисляются только их имена.
type ExcelFormatter struct{}

// NewExcelFormatter создает новый экземпляр ExcelFormatter.
func NewExcelFormatter() ports.Formatter {
	return &ExcelFormatter{}
}

const excelSheetName = "Транскрипт"

// Format отображает записи транскрипта в XLSX.
func (f *ExcelFormatter) Format(customerName string, agentNames []string, records []domain.TranscriptRecord) ([]byte, error) {
	file := excelize.NewFile()
	defer file.Close()

	index, err := file.NewSheet(excelSheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	file.SetActiveSheet(index)

	// Заголовки
	headers := []string{"Дата", "Автор", "Сообщение", "Вложения"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := file.SetCellValue(excelSheetName, cell, h); err != nil {
			return nil, fmt.Errorf("failed to set header cell: %w", err)
		}
	}

	// Данные
	for i, rec := range records {
		row := i + 2
		filenames := make([]string, 0, len(rec.Media))
		for _, media := range rec.Media {
			filenames = append(filenames, media.Filename)
		}

		file.SetCellValue(excelSheetName, fmt.Sprintf("A%d", row), rec.Timestamp.Local().Format(timestampLayout))
		file.SetCellValue(excelSheetName, fmt.Sprintf("B%d", row), rec.Author)
		file.SetCellValue(excelSheetName, fmt.Sprintf("C%d", row), rec.Body)
		file.SetCellValue(excelSheetName, fmt.Sprintf("D%d", row), strings.Join(filenames, ", "))
	}

	var buf bytes.Buffer
	if err := file.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write excel to buffer: %w", err)
	}

	return buf.Bytes(), nil
}

// FileExtension возвращает расширение файла формата.
func (f *ExcelFormatter) FileExtension() string { return ".xlsx" }

// ContentType возвращает MIME-тип формата.
func (f *ExcelFormatter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}
