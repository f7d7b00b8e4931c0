package journal

import (
	"database/sql"
	"fmt"
	"time"
)

const selectCloses = `
	SELECT id, time, account_id, platform, symbols, matched, closed, failed, error
	FROM closes`

// GetClose returns a single close record by ID.
func (j *SQLiteJournal) GetClose(id string) (CloseRecord, error) {
	row := j.db.QueryRow(selectCloses+` WHERE id = ?`, id)

	rec, err := scanClose(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return CloseRecord{}, fmt.Errorf("close %q not found", id)
		}
		return CloseRecord{}, err
	}
	return rec, nil
}

// ListClosesBetween returns sweeps whose time is within [start, end), oldest
// first. An empty accountID matches every account.
func (j *SQLiteJournal) ListClosesBetween(accountID string, start, end time.Time) ([]CloseRecord, error) {
	rows, err := j.db.Query(selectCloses+`
		WHERE time >= ? AND time < ? AND (? = '' OR account_id = ?)
		ORDER BY time ASC, id ASC`, start.UTC(), end.UTC(), accountID, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CloseRecord
	for rows.Next() {
		rec, err := scanClose(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanClose(s scanner) (CloseRecord, error) {
	var rec CloseRecord
	err := s.Scan(
		&rec.ID,
		&rec.Time,
		&rec.AccountID,
		&rec.Platform,
		&rec.Symbols,
		&rec.Matched,
		&rec.Closed,
		&rec.Failed,
		&rec.Error,
	)
	return rec, err
}
