package db

import (
	"context"
	"time"

	"lkml/mergetrace/internal/archive"
)

func scanCommit(scanner interface{ Scan(dest ...any) error }) (archive.Commit, error) {
	var c archive.Commit
	var dateMs int64
	if err := scanner.Scan(&c.Hash, &c.Author, &dateMs, &c.Message); err != nil {
		return c, err
	}
	c.Date = time.UnixMilli(dateMs).UTC()
	return c, nil
}

// Commits returns commits ordered by date then hash
func (d *DB) Commits(ctx context.Context, limit int) ([]archive.Commit, error) {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT hash, COALESCE(author, ''), COALESCE(date, 0), COALESCE(message, '')
		FROM commits
		ORDER BY date ASC, hash ASC
		LIMIT ?
	`, limitArg(limit))
	if err != nil {
		return nil, schemaErr("querying commits", err)
	}
	defer rows.Close()

	var commits []archive.Commit
	for rows.Next() {
		c, err := scanCommit(rows)
		if err != nil {
			return nil, schemaErr("querying commits", err)
		}
		commits = append(commits, c)
	}
	if err := rows.Err(); err != nil {
		return nil, schemaErr("querying commits", err)
	}
	return commits, nil
}

// Maintainers returns the maintainer allow-list. A database without a
// maintainers table yields an empty list.
func (d *DB) Maintainers(ctx context.Context) ([]archive.Maintainer, error) {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT email, COALESCE(name, ''), COALESCE(subsystem, ''), COALESCE(role, '')
		FROM maintainers
		ORDER BY email
	`)
	if err != nil {
		if isMissingTable(err) {
			return []archive.Maintainer{}, nil
		}
		return nil, schemaErr("querying maintainers", err)
	}
	defer rows.Close()

	var out []archive.Maintainer
	for rows.Next() {
		var m archive.Maintainer
		if err := rows.Scan(&m.Email, &m.Name, &m.Subsystem, &m.Role); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
