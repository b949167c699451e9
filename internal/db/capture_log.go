// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/Thermoquad/advcast/pkg/bleadv"
)

// CaptureRecord is one identified capture
type CaptureRecord struct {
	ID        int64
	Timestamp time.Time
	Codec     string
	Params    bleadv.ControllerParams
	Opcode    uint8
	Args      []byte
	Raw       []byte
	NoDiff    bool
}

// CaptureLog stores identified captures
type CaptureLog struct {
	db *sql.DB
}

// NewCaptureLog creates a capture log on db
func NewCaptureLog(db *DB) *CaptureLog {
	return &CaptureLog{db: db.DB}
}

// Record appends an identification seen at ts
func (l *CaptureLog) Record(ts time.Time, id *bleadv.Identification) error {
	_, err := l.db.Exec(`
		INSERT INTO capture_log (timestamp, codec, transmitter_id, idx, tx_count, opcode, args, raw, no_diff)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, ts.UTC().UnixMilli(), id.Codec.ID(), id.Params.ID, id.Params.Index, id.Params.TxCount,
		id.Command.Opcode, id.Command.Args[:], id.Raw.Bytes(), id.NoDiff)
	if err != nil {
		return fmt.Errorf("failed to record capture: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first
func (l *CaptureLog) Recent(limit int) ([]CaptureRecord, error) {
	rows, err := l.db.Query(`
		SELECT id, timestamp, codec, transmitter_id, idx, tx_count, opcode, args, raw, no_diff
		FROM capture_log ORDER BY timestamp DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query captures: %w", err)
	}
	defer rows.Close()

	var records []CaptureRecord
	for rows.Next() {
		var r CaptureRecord
		var ts int64
		if err := rows.Scan(&r.ID, &ts, &r.Codec, &r.Params.ID, &r.Params.Index, &r.Params.TxCount,
			&r.Opcode, &r.Args, &r.Raw, &r.NoDiff); err != nil {
			return nil, fmt.Errorf("failed to scan capture: %w", err)
		}
		r.Timestamp = time.UnixMilli(ts).UTC()
		records = append(records, r)
	}
	return records, rows.Err()
}

// Prune deletes records older than before and returns how many were removed
func (l *CaptureLog) Prune(before time.Time) (int64, error) {
	res, err := l.db.Exec(`DELETE FROM capture_log WHERE timestamp < ?`, before.UTC().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to prune captures: %w", err)
	}
	return res.RowsAffected()
}
