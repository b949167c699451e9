// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/Thermoquad/advcast/pkg/controller"
)

// ControllerStore persists controller rolling state
type ControllerStore struct {
	db *sql.DB
}

// NewControllerStore creates a store on db
func NewControllerStore(db *DB) *ControllerStore {
	return &ControllerStore{db: db.DB}
}

// LoadState implements controller.StateStore
func (s *ControllerStore) LoadState(name string) (controller.State, bool, error) {
	var st controller.State
	var deviceUUID sql.NullString

	err := s.db.QueryRow(`
		SELECT tx_count, seed, device_uuid FROM controller_state WHERE name = ?
	`, name).Scan(&st.TxCount, &st.Seed, &deviceUUID)

	if err == sql.ErrNoRows {
		return controller.State{}, false, nil
	}
	if err != nil {
		return controller.State{}, false, fmt.Errorf("failed to load controller state: %w", err)
	}
	st.DeviceUUID = deviceUUID.String
	return st, true, nil
}

// SaveState implements controller.StateStore
func (s *ControllerStore) SaveState(name string, st controller.State) error {
	var deviceUUID *string
	if st.DeviceUUID != "" {
		deviceUUID = &st.DeviceUUID
	}

	_, err := s.db.Exec(`
		INSERT INTO controller_state (name, tx_count, seed, device_uuid, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			tx_count = excluded.tx_count,
			seed = excluded.seed,
			device_uuid = COALESCE(excluded.device_uuid, controller_state.device_uuid),
			updated_at = excluded.updated_at
	`, name, st.TxCount, st.Seed, deviceUUID, time.Now().UTC().Unix())
	if err != nil {
		return fmt.Errorf("failed to save controller state: %w", err)
	}
	return nil
}

// Names lists the controllers with stored state
func (s *ControllerStore) Names() ([]string, error) {
	rows, err := s.db.Query(`SELECT name FROM controller_state ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list controller state: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
