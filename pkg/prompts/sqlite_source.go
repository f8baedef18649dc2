package prompts

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	_ "github.com/mattn/go-sqlite3" // драйвер "sqlite3"
)

// DefaultPromptsTable — таблица промптов по умолчанию.
const DefaultPromptsTable = "prompts"

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLiteSource — загрузка промптов из SQLite базы.
//
// Структура таблицы:
//
//	CREATE TABLE prompts (
//	    id        TEXT PRIMARY KEY,
//	    system    TEXT,
//	    template  TEXT,
//	    variables TEXT  -- JSON объект {"name": "value"}
//	);
type SQLiteSource struct {
	db    *sql.DB
	table string
}

// OpenSQLiteSource открывает базу по пути path.
//
// table пустой — DefaultPromptsTable. Имя таблицы подставляется в SQL,
// поэтому допускаются только идентификаторы.
func OpenSQLiteSource(path, table string) (*SQLiteSource, error) {
	if table == "" {
		table = DefaultPromptsTable
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid prompts table name %q", table)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open prompts db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open prompts db %s: %w", path, err)
	}
	return NewSQLiteSource(db, table), nil
}

// NewSQLiteSource создаёт источник поверх уже открытого *sql.DB.
func NewSQLiteSource(db *sql.DB, table string) *SQLiteSource {
	if table == "" {
		table = DefaultPromptsTable
	}
	return &SQLiteSource{db: db, table: table}
}

// Load загружает промпт из базы данных по ID.
func (s *SQLiteSource) Load(promptID string) (*PromptFile, error) {
	var system, template, variables sql.NullString

	query := fmt.Sprintf("SELECT system, template, variables FROM %s WHERE id = ?", s.table)
	err := s.db.QueryRow(query, promptID).Scan(&system, &template, &variables)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("prompt '%s' in table '%s': %w", promptID, s.table, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("database query failed: %w", err)
	}

	file := &PromptFile{
		System:   system.String,
		Template: template.String,
	}
	if variables.Valid && variables.String != "" {
		if err := json.Unmarshal([]byte(variables.String), &file.Variables); err != nil {
			return nil, fmt.Errorf("prompt '%s': invalid variables JSON: %w", promptID, err)
		}
	}
	return file, nil
}

// Close закрывает соединение с базой.
func (s *SQLiteSource) Close() error {
	return s.db.Close()
}
