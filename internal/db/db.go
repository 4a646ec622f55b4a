package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Open connects to the SQLite database and runs schema migrations.
func Open(path string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=foreign_keys(1)", path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(0)

	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return conn, nil
}

func migrate(db *sql.DB) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS decks (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			source_name TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS cards (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			deck_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			front TEXT NOT NULL,
			back TEXT NOT NULL,
			due DATETIME,
			stability REAL NOT NULL DEFAULT 0,
			difficulty REAL NOT NULL DEFAULT 0,
			elapsed_days INTEGER NOT NULL DEFAULT 0,
			scheduled_days INTEGER NOT NULL DEFAULT 0,
			reps INTEGER NOT NULL DEFAULT 0,
			lapses INTEGER NOT NULL DEFAULT 0,
			state INTEGER NOT NULL DEFAULT 0,
			last_review DATETIME,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			FOREIGN KEY(deck_id) REFERENCES decks(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS quiz_questions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			deck_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			question TEXT NOT NULL DEFAULT '',
			option1 TEXT NOT NULL,
			option2 TEXT NOT NULL,
			option3 TEXT NOT NULL,
			option4 TEXT NOT NULL,
			correct_index INTEGER NOT NULL,
			answer_key TEXT NOT NULL DEFAULT '',
			FOREIGN KEY(deck_id) REFERENCES decks(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS review_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			card_id INTEGER NOT NULL,
			rating INTEGER NOT NULL,
			scheduled_days INTEGER NOT NULL,
			elapsed_days INTEGER NOT NULL,
			state INTEGER NOT NULL,
			reviewed_at DATETIME NOT NULL,
			FOREIGN KEY(card_id) REFERENCES cards(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_cards_deck ON cards(deck_id, position);`,
		`CREATE INDEX IF NOT EXISTS idx_cards_due ON cards(due);`,
		`CREATE INDEX IF NOT EXISTS idx_quiz_deck ON quiz_questions(deck_id, position);`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("execute %q: %w", stmt, err)
		}
	}
	return nil
}
