package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"webchat-transcript-exporter/internal/adapters/source"
	"webchat-transcript-exporter/internal/adapters/storage"
	"webchat-transcript-exporter/internal/domain"
	"webchat-transcript-exporter/internal/pkg/term"
)

type TaskStatusResponse struct {
	TaskID       string `json:"task_id"`
	Status       string `json:"status"`
	Progress     int    `json:"progress"`
	Generating   bool   `json:"generating"`
	ErrorMessage string `json:"error_message,omitempty"`
}

func main() {
	var (
		serverAddr  string
		emailFlow   bool
		exportFmt   string
		outDir      string
		token       string
		promptToken bool
	)
	flag.StringVar(&serverAddr, "server", "http://localhost:8080", "Server address")
	flag.BoolVar(&emailFlow, "email", false, "Send the transcript by email instead of downloading")
	flag.StringVar(&exportFmt, "format", "", "Download format: empty for text/zip, 'xlsx' for a spreadsheet")
	flag.StringVar(&outDir, "out", ".", "Directory for the downloaded artifact")
	flag.StringVar(&token, "token", "", "API token (falls back to EXPORT_API_TOKEN)")
	flag.BoolVar(&promptToken, "auth", false, "Prompt for the API token interactively")
	flag.Parse()

	if flag.NArg() != 1 {
		log.Fatal("A snapshot file path is required. Usage: client [flags] <snapshot.json>")
	}

	if token == "" {
		token = os.Getenv("EXPORT_API_TOKEN")
	}
	if token == "" && promptToken {
		t, err := term.NewTerminal().ReadToken()
		if err != nil {
			log.Fatalf("Не удалось прочитать токен: %v", err)
		}
		token = t
	}

	snapshot, err := source.NewCliSource(flag.Arg(0)).Fetch()
	if err != nil {
		log.Fatalf("Не удалось прочитать снимок беседы: %v", err)
	}

	if emailFlow {
		snapshot, err = ensureRecipient(snapshot, term.NewTerminal().ReadLine)
		if err != nil {
			log.Fatalf("Не удалось определить адрес получателя: %v", err)
		}
	}

	client := &http.Client{Timeout: 30 * time.Second}

	taskID, err := startExport(client, serverAddr, token, emailFlow, exportFmt, snapshot)
	if err != nil {
		log.Fatalf("Не удалось запустить экспорт: %v", err)
	}
	fmt.Printf("Задача создана: %s\n", taskID)

	status, err := waitForTask(client, serverAddr, token, taskID)
	if err != nil {
		log.Fatalf("Экспорт завершился с ошибкой: %v", err)
	}

	if emailFlow {
		fmt.Println("Транскрипт отправлен на почту.")
		return
	}

	name, size, contentType, err := downloadArtifact(client, serverAddr, token, taskID, outDir)
	if err != nil {
		log.Fatalf("Не удалось получить артефакт: %v", err)
	}

	printSummary([][2]string{
		{"Задача", status.TaskID},
		{"Статус", status.Status},
		{"Артефакт", name},
		{"Тип", contentType},
		{"Размер", fmt.Sprintf("%d байт", size)},
	})
}

// startExport отправляет снимок беседы на сервер и возвращает идентификатор задачи.
func startExport(client *http.Client, serverAddr, token string, emailFlow bool, exportFmt string, snapshot []byte) (string, error) {
	url := serverAddr + "/api/v1/export"
	if emailFlow {
		url = serverAddr + "/api/v1/export/email"
	} else if exportFmt != "" {
		url += "?format=" + exportFmt
	}

	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(string(snapshot)))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var result struct {
		TaskID string `json:"task_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	return result.TaskID, nil
}

// waitForTask опрашивает статус задачи до ее завершения.
func waitForTask(client *http.Client, serverAddr, token, taskID string) (*TaskStatusResponse, error) {
	lastProgress := -1
	for {
		req, err := http.NewRequest(http.MethodGet, serverAddr+"/api/v1/tasks/"+taskID, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to send request: %w", err)
		}

		var status TaskStatusResponse
		err = json.NewDecoder(resp.Body).Decode(&status)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}

		if status.Progress != lastProgress {
			lastProgress = status.Progress
			phase := "передача"
			if status.Generating {
				phase = "генерация"
			}
			fmt.Printf("Прогресс: %d%% (%s)\n", status.Progress, phase)
		}

		switch status.Status {
		case "completed":
			return &status, nil
		case "failed":
			return nil, fmt.Errorf("задача завершилась с ошибкой: %s", status.ErrorMessage)
		}

		time.Sleep(500 * time.Millisecond)
	}
}

// downloadArtifact скачивает готовый артефакт и сохраняет его в каталог.
func downloadArtifact(client *http.Client, serverAddr, token, taskID, outDir string) (name string, size int, contentType string, err error) {
	req, err := http.NewRequest(http.MethodGet, serverAddr+"/api/v1/tasks/"+taskID+"/artifact", nil)
	if err != nil {
		return "", 0, "", fmt.Errorf("failed to create request: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", 0, "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", 0, "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, "", fmt.Errorf("failed to read artifact: %w", err)
	}

	name = artifactFilename(resp.Header.Get("Content-Disposition"))
	if name == "" {
		name = "transcript-" + taskID
	}

	contentType = resp.Header.Get("Content-Type")
	saver := storage.NewFileSaver(outDir)
	if err := saver.Save(context.Background(), &domain.Artifact{
		Name:        name,
		ContentType: contentType,
		Data:        data,
	}); err != nil {
		return "", 0, "", fmt.Errorf("failed to write artifact: %w", err)
	}

	return name, len(data), contentType, nil
}

// ensureRecipient гарантирует, что в снимке указан адрес получателя:
// при его отсутствии адрес запрашивается интерактивно и подставляется
// в pre-engagement данные снимка.
func ensureRecipient(snapshot []byte, prompt func(string) (string, error)) ([]byte, error) {
	var doc map[string]any
	if err := json.Unmarshal(snapshot, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}

	pre, _ := doc["pre_engagement"].(map[string]any)
	if email, _ := pre["email"].(string); email != "" {
		return snapshot, nil
	}

	email, err := prompt("Адрес получателя: ")
	if err != nil {
		return nil, err
	}
	if email == "" {
		return nil, fmt.Errorf("адрес получателя не указан")
	}

	if pre == nil {
		pre = map[string]any{}
		doc["pre_engagement"] = pre
	}
	pre["email"] = email

	return json.Marshal(doc)
}

// artifactFilename извлекает имя файла из заголовка Content-Disposition.
func artifactFilename(disposition string) string {
	const marker = `filename="`
	i := strings.Index(disposition, marker)
	if i < 0 {
		return ""
	}
	rest := disposition[i+len(marker):]
	j := strings.Index(rest, `"`)
	if j < 0 {
		return ""
	}
	return rest[:j]
}

// printSummary выводит итоговую таблицу с выравниванием по ширине рун.
func printSummary(rows [][2]string) {
	colWidth := 0
	for _, row := range rows {
		if w := runewidth.StringWidth(row[0]); w > colWidth {
			colWidth = w
		}
	}

	for _, row := range rows {
		padding := strings.Repeat(" ", colWidth-runewidth.StringWidth(row[0]))
		fmt.Printf("%s%s  %s\n", row[0], padding, row[1])
	}
}
