// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/advcast/pkg/bleadv"
	"github.com/Thermoquad/advcast/pkg/controller"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "advcast.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "advcast.db")

	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, NewControllerStore(db).SaveState("fan", controller.State{TxCount: 9}))
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()

	st, ok, err := NewControllerStore(db).LoadState("fan")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint8(9), st.TxCount)
}

func TestControllerStore_Missing(t *testing.T) {
	store := NewControllerStore(openTestDB(t))

	st, ok, err := store.LoadState("nobody")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, controller.State{}, st)
}

func TestControllerStore_Upsert(t *testing.T) {
	store := NewControllerStore(openTestDB(t))

	require.NoError(t, store.SaveState("fan", controller.State{TxCount: 1, Seed: 0x1234, DeviceUUID: "3f0e"}))
	require.NoError(t, store.SaveState("fan", controller.State{TxCount: 2, Seed: 0x1234}))

	st, ok, err := store.LoadState("fan")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint8(2), st.TxCount)
	assert.Equal(t, uint16(0x1234), st.Seed)
	assert.Equal(t, "3f0e", st.DeviceUUID, "an empty uuid keeps the stored one")

	require.NoError(t, store.SaveState("lamp", controller.State{TxCount: 127}))
	names, err := store.Names()
	require.NoError(t, err)
	assert.Equal(t, []string{"fan", "lamp"}, names)
}

func TestControllerStore_WithController(t *testing.T) {
	store := NewControllerStore(openTestDB(t))
	reg := bleadv.DefaultRegistry(bleadv.FixedSeed(1))
	cfg := controller.Config{Name: "Living Room Fan", Codec: "zhijia - v2", UseUUID: true}

	c, err := controller.New(cfg, reg, nil, store)
	require.NoError(t, err)
	uuid := c.DeviceUUID()
	require.NotEmpty(t, uuid)

	again, err := controller.New(cfg, reg, nil, store)
	require.NoError(t, err)
	assert.Equal(t, uuid, again.DeviceUUID())
	assert.Equal(t, c.Params().ID, again.Params().ID)
}

func TestCaptureLog_RecordRecent(t *testing.T) {
	db := openTestDB(t)
	captures := NewCaptureLog(db)
	reg := bleadv.DefaultRegistry(bleadv.FixedSeed(0x0777))

	c, err := reg.Lookup("zhijia - v1")
	require.NoError(t, err)
	params := bleadv.ControllerParams{ID: 0x010203}
	packets := c.Encode(bleadv.NewCommand(bleadv.CmdLightOn), &params)
	require.Len(t, packets, 1)

	id, ok := reg.Identify(packets[0], false)
	require.True(t, ok)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, captures.Record(base, id))
	require.NoError(t, captures.Record(base.Add(time.Second), id))

	records, err := captures.Recent(10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, base.Add(time.Second), records[0].Timestamp)
	assert.Equal(t, "zhijia - v1", records[0].Codec)
	assert.Equal(t, id.Params.ID, records[0].Params.ID)
	assert.Equal(t, id.Command.Opcode, records[0].Opcode)
	assert.Equal(t, packets[0].Bytes(), records[0].Raw)
	assert.True(t, records[0].NoDiff)

	removed, err := captures.Prune(base.Add(time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	records, err = captures.Recent(10)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}
