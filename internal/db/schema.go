package db

import (
	"context"
	"database/sql"
	"fmt"

	"lkml/mergetrace/internal/archive"
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id          TEXT PRIMARY KEY,
	subject     TEXT NOT NULL DEFAULT '',
	sender      TEXT NOT NULL DEFAULT '',
	date        INTEGER NOT NULL DEFAULT 0,
	body        TEXT,
	in_reply_to TEXT,
	thread_id   TEXT
);
CREATE INDEX IF NOT EXISTS idx_messages_date ON messages(date);
CREATE INDEX IF NOT EXISTS idx_messages_thread ON messages(thread_id);

CREATE TABLE IF NOT EXISTS commits (
	hash    TEXT PRIMARY KEY,
	author  TEXT NOT NULL DEFAULT '',
	date    INTEGER NOT NULL DEFAULT 0,
	message TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS maintainers (
	email     TEXT NOT NULL,
	name      TEXT,
	subsystem TEXT,
	role      TEXT
);
`

// EnsureSchema creates the store tables if they do not exist
func (d *DB) EnsureSchema(ctx context.Context) error {
	if _, err := d.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// InsertMessage inserts or replaces one message
func (d *DB) InsertMessage(ctx context.Context, m archive.Message) error {
	_, err := d.conn.ExecContext(ctx, `
		INSERT OR REPLACE INTO messages (id, subject, sender, date, body, in_reply_to, thread_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.Subject, m.Sender, m.Date.UnixMilli(), nullString(m.Body),
		nullString(m.ReplyToID), nullString(m.ThreadID))
	if err != nil {
		return fmt.Errorf("inserting message %s: %w", m.ID, err)
	}
	return nil
}

// InsertCommit inserts or replaces one commit
func (d *DB) InsertCommit(ctx context.Context, c archive.Commit) error {
	_, err := d.conn.ExecContext(ctx, `
		INSERT OR REPLACE INTO commits (hash, author, date, message) VALUES (?, ?, ?, ?)
	`, c.Hash, c.Author, c.Date.UnixMilli(), c.Message)
	if err != nil {
		return fmt.Errorf("inserting commit %s: %w", c.Hash, err)
	}
	return nil
}

// InsertMaintainer adds one allow-list entry
func (d *DB) InsertMaintainer(ctx context.Context, m archive.Maintainer) error {
	_, err := d.conn.ExecContext(ctx, `
		INSERT INTO maintainers (email, name, subsystem, role) VALUES (?, ?, ?, ?)
	`, m.Email, nullString(m.Name), nullString(m.Subsystem), nullString(m.Role))
	if err != nil {
		return fmt.Errorf("inserting maintainer %s: %w", m.Email, err)
	}
	return nil
}
