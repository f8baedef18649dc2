// Package utils предоставляет вспомогательные функции для обработки ответов LLM.
//
// Включает извлечение кода из markdown-блоков, очистку текста
// перед выводом пользователю, файловый логгер и graceful shutdown.
package utils

import (
	"strings"
)

// ExtractCodeBlock возвращает содержимое первого fenced code block.
//
// Модель отвечает текстом с кодом внутри ```python ... ```.
// Тег языка после открывающих кавычек необязателен и отбрасывается.
// Незакрытый блок считается закрытым концом текста.
//
// Возвращает ("", false) если в тексте нет ни одного блока.
//
// Примеры:
//
//	"Вот код:\n```python\nx = 1\n```" → ("x = 1", true)
//	"```\ny = 2\n```" → ("y = 2", true)
//	"просто текст" → ("", false)
func ExtractCodeBlock(s string) (string, bool) {
	lines := strings.Split(s, "\n")

	start := -1
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			start = i
			break
		}
	}
	if start == -1 {
		return "", false
	}

	// Однострочный блок: ```x = 1```
	opening := strings.TrimSpace(lines[start])
	if rest := strings.TrimPrefix(opening, "```"); strings.HasSuffix(rest, "```") && len(rest) >= 3 {
		return strings.TrimSpace(strings.TrimSuffix(rest, "```")), true
	}

	var body []string
	for _, line := range lines[start+1:] {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			break
		}
		body = append(body, line)
	}

	return strings.TrimSpace(strings.Join(body, "\n")), true
}

// CleanMarkdownCode удаляет все markdown code blocks из текста.
//
// Работает с полным текстом, содержащим несколько code blocks,
// и удаляет их все, оставляя только обычный текст (пояснения модели).
//
// Примеры:
//
//	"Пример:\n```json\n{"a": 1}\n```\nКонец" → "Пример:\nКонец"
func CleanMarkdownCode(s string) string {
	lines := strings.Split(s, "\n")
	var result []string

	inCodeBlock := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		// Проверяем начало/конец code block
		if strings.HasPrefix(trimmed, "```") {
			inCodeBlock = !inCodeBlock
			continue
		}

		// Добавляем строку только если не внутри code block
		if !inCodeBlock {
			result = append(result, line)
		}
	}

	return strings.Join(result, "\n")
}

// SanitizeLLMOutput выполняет комплексную очистку вывода LLM.
//
// Применяет несколько шагов очистки:
// 1. Удаляет markdown code blocks
// 2. Удаляет лишние пробелы в начале/конце строк
// 3. Удаляет пустые строки
//
// Используется как финальный шаг перед отображением ответа пользователю.
func SanitizeLLMOutput(s string) string {
	// 1. Удаляем markdown code blocks
	s = CleanMarkdownCode(s)

	// 2. Разбиваем на строки и обрезаем пробелы
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}

	// 3. Удаляем пустые строки (включая середину)
	var nonEmpty []string
	for _, line := range lines {
		if line != "" {
			nonEmpty = append(nonEmpty, line)
		}
	}

	return strings.Join(nonEmpty, "\n")
}
