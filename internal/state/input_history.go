package state

import (
	"context"
	"strings"
	"time"
)

const DefaultInputHistoryLimit = 100

func (db *DB) AppendInputHistory(ctx context.Context, chatID uint64, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}

	if _, err := db.conn.ExecContext(ctx, `
		INSERT INTO input_history (chat_id, content, created_at)
		VALUES (?, ?, ?)
	`, chatID, content, time.Now().UTC()); err != nil {
		return err
	}

	_, err := db.conn.ExecContext(ctx, `
		DELETE FROM input_history
		WHERE chat_id = ?
		  AND id NOT IN (
			SELECT id
			FROM input_history
			WHERE chat_id = ?
			ORDER BY id DESC
			LIMIT ?
		  )
	`, chatID, chatID, DefaultInputHistoryLimit)
	return err
}

func (db *DB) InputHistory(ctx context.Context, chatID uint64) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT content
		FROM input_history
		WHERE chat_id = ?
		ORDER BY id ASC
	`, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]string, 0, DefaultInputHistoryLimit)
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return nil, err
		}
		content = strings.TrimSpace(content)
		if content == "" {
			continue
		}
		out = append(out, content)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
