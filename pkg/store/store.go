// Package store — SQLite хранилище сгенерированного контента.
//
// Темы, описания изображений и поисковые словосочетания складываются
// в одну локальную базу. Хранилище советующее: источником истины для
// уникальности идентификаторов остаётся pkg/registry, база нужна для
// истории и повторного экспорта.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ilkoid/fabrika/pkg/utils"
)

// Topic — сгенерированная тема.
type Topic struct {
	ID        int64
	Category  string
	Title     string
	Content   string
	Keywords  string
	CreatedAt time.Time
}

// ImageDescription — результат описания одного изображения.
type ImageDescription struct {
	ID           int64
	NumberingID  string // идентификатор из pkg/registry
	ImageName    string
	ImagePath    string
	Title        string
	Description  string
	CategoryCode string
	Character    string
	CreatedAt    time.Time
}

// ContentMatch — подобранные поисковые словосочетания для готового текста.
type ContentMatch struct {
	ID              int64
	OriginalContent string
	QueryTerms      string // словосочетания через перевод строки
	MatchType       string // "xiaohongshu", "weibo" и т.д.
	CreatedAt       time.Time
}

// Store — обёртка над *sql.DB с типизированными операциями.
type Store struct {
	db *sql.DB
}

// Open открывает (или создаёт) базу по пути path и применяет схему.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// SQLite не любит конкурентные writer'ы из нескольких соединений.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	utils.Info("Content store opened", "path", path)
	return s, nil
}

// Close закрывает соединение с базой.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
CREATE TABLE IF NOT EXISTS topics (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    category    TEXT NOT NULL,
    title       TEXT NOT NULL,
    content     TEXT NOT NULL DEFAULT '',
    keywords    TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS image_descriptions (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    numbering_id  TEXT NOT NULL UNIQUE,
    image_name    TEXT NOT NULL,
    image_path    TEXT NOT NULL,
    title         TEXT NOT NULL,
    description   TEXT NOT NULL,
    category_code TEXT NOT NULL,
    character     TEXT NOT NULL,
    created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS content_matches (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    original_content TEXT NOT NULL,
    query_terms      TEXT NOT NULL,
    match_type       TEXT NOT NULL,
    created_at       TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// SaveTopic сохраняет тему и возвращает её ID.
func (s *Store) SaveTopic(ctx context.Context, t Topic) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO topics (category, title, content, keywords) VALUES (?, ?, ?, ?)`,
		t.Category, t.Title, t.Content, t.Keywords)
	if err != nil {
		return 0, fmt.Errorf("insert topic: %w", err)
	}
	return res.LastInsertId()
}

// SaveImageDescription сохраняет описание изображения и возвращает ID записи.
func (s *Store) SaveImageDescription(ctx context.Context, d ImageDescription) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO image_descriptions
		 (numbering_id, image_name, image_path, title, description, category_code, character)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.NumberingID, d.ImageName, d.ImagePath, d.Title, d.Description, d.CategoryCode, d.Character)
	if err != nil {
		return 0, fmt.Errorf("insert image description: %w", err)
	}
	return res.LastInsertId()
}

// SaveContentMatch сохраняет подобранные словосочетания.
func (s *Store) SaveContentMatch(ctx context.Context, m ContentMatch) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO content_matches (original_content, query_terms, match_type) VALUES (?, ?, ?)`,
		m.OriginalContent, m.QueryTerms, m.MatchType)
	if err != nil {
		return 0, fmt.Errorf("insert content match: %w", err)
	}
	return res.LastInsertId()
}

// RecentTopics возвращает последние limit тем (новые первыми).
func (s *Store) RecentTopics(ctx context.Context, limit int) ([]Topic, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, category, title, content, keywords, created_at
		 FROM topics ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query topics: %w", err)
	}
	defer rows.Close()

	var topics []Topic
	for rows.Next() {
		var t Topic
		if err := rows.Scan(&t.ID, &t.Category, &t.Title, &t.Content, &t.Keywords, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan topic: %w", err)
		}
		topics = append(topics, t)
	}
	return topics, rows.Err()
}

// RecentDescriptions возвращает последние limit описаний изображений.
func (s *Store) RecentDescriptions(ctx context.Context, limit int) ([]ImageDescription, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, numbering_id, image_name, image_path, title, description, category_code, character, created_at
		 FROM image_descriptions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query image descriptions: %w", err)
	}
	defer rows.Close()

	var descs []ImageDescription
	for rows.Next() {
		var d ImageDescription
		if err := rows.Scan(&d.ID, &d.NumberingID, &d.ImageName, &d.ImagePath,
			&d.Title, &d.Description, &d.CategoryCode, &d.Character, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan image description: %w", err)
		}
		descs = append(descs, d)
	}
	return descs, rows.Err()
}

// DescriptionsByCharacter возвращает все описания заданного персонажа
// (для повторного экспорта в CSV).
func (s *Store) DescriptionsByCharacter(ctx context.Context, character string) ([]ImageDescription, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, numbering_id, image_name, image_path, title, description, category_code, character, created_at
		 FROM image_descriptions WHERE character = ? ORDER BY id`, character)
	if err != nil {
		return nil, fmt.Errorf("query image descriptions: %w", err)
	}
	defer rows.Close()

	var descs []ImageDescription
	for rows.Next() {
		var d ImageDescription
		if err := rows.Scan(&d.ID, &d.NumberingID, &d.ImageName, &d.ImagePath,
			&d.Title, &d.Description, &d.CategoryCode, &d.Character, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan image description: %w", err)
		}
		descs = append(descs, d)
	}
	return descs, rows.Err()
}

// KeywordsList разбирает поле Keywords темы в срез.
func (t Topic) KeywordsList() []string {
	if t.Keywords == "" {
		return nil
	}
	parts := strings.Split(t.Keywords, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
