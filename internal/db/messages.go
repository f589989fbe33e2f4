package db

import (
	"context"
	"database/sql"
	"time"

	"lkml/mergetrace/internal/archive"
	"lkml/mergetrace/internal/signature"
)

const messageColumns = `id, COALESCE(subject, ''), COALESCE(sender, ''), COALESCE(date, 0),
	body, in_reply_to, thread_id`

// scanMessage scans a row with messageColumns and fills the derived fields
func scanMessage(scanner interface{ Scan(dest ...any) error }) (archive.Message, error) {
	var (
		m                     archive.Message
		dateMs                int64
		body, replyTo, thread sql.NullString
	)
	if err := scanner.Scan(&m.ID, &m.Subject, &m.Sender, &dateMs, &body, &replyTo, &thread); err != nil {
		return m, err
	}
	m.Date = time.UnixMilli(dateMs).UTC()
	m.Body = body.String
	m.ReplyToID = replyTo.String
	m.ThreadID = thread.String
	m.NormalizedSubject = signature.Extract(m.Subject).Title
	m.SenderDomain = archive.Domain(m.Sender)
	return m, nil
}

func (d *DB) queryMessages(ctx context.Context, what, where string, limit int, args ...any) ([]archive.Message, error) {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE `+where+`
		ORDER BY date ASC, id ASC
		LIMIT ?
	`, append(args, limitArg(limit))...)
	if err != nil {
		return nil, schemaErr(what, err)
	}
	defer rows.Close()

	var msgs []archive.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, schemaErr(what, err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, schemaErr(what, err)
	}
	return msgs, nil
}

// Messages returns patch-related messages ordered by date then id. A subject
// qualifies when PATCH appears inside a bracket group, in any case.
func (d *DB) Messages(ctx context.Context, limit int) ([]archive.Message, error) {
	return d.queryMessages(ctx, "querying messages", `subject LIKE '%[%patch%]%'`, limit)
}

// PullMessages returns probable pull-request announcements. Callers still
// filter with match.IsPullRequest.
func (d *DB) PullMessages(ctx context.Context, limit int) ([]archive.Message, error) {
	return d.queryMessages(ctx, "querying pull messages",
		`(subject LIKE '%GIT PULL%' OR subject LIKE '%please pull%') AND subject NOT LIKE 'Re:%'`, limit)
}

// Thread returns every message of one thread ordered by date
func (d *DB) Thread(ctx context.Context, threadID string) ([]archive.Message, error) {
	return d.queryMessages(ctx, "querying thread", `thread_id = ?`, 0, threadID)
}
