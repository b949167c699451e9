// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package capture

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tinygo.org/x/bluetooth"

	"github.com/Thermoquad/advcast/pkg/advlink"
	"github.com/Thermoquad/advcast/pkg/bleadv"
)

var epoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func encodeOne(t *testing.T, reg *bleadv.Registry, codecID string, cmd bleadv.Command, params bleadv.ControllerParams) []byte {
	t.Helper()
	c, err := reg.Lookup(codecID)
	require.NoError(t, err)
	packets := c.Encode(cmd, &params)
	require.Len(t, packets, 1)
	return packets[0].Bytes()
}

// ============================================================
// History Tests
// ============================================================

func TestHistory_Seen(t *testing.T) {
	h := NewHistory(5 * time.Second)
	raw := []byte{0x02, 0x01, 0x1A}

	assert.False(t, h.Seen(raw, epoch))
	assert.True(t, h.Seen(raw, epoch.Add(time.Second)))
	assert.False(t, h.Seen([]byte{0x02, 0x01, 0x19}, epoch.Add(time.Second)))
	assert.True(t, h.Seen(raw, epoch.Add(4*time.Second)))
	assert.False(t, h.Seen(raw, epoch.Add(5*time.Second)), "window counts from the first sighting")
	assert.True(t, h.Seen(raw, epoch.Add(6*time.Second)))

	h.Prune(epoch.Add(time.Minute))
	assert.Equal(t, 0, h.Len())
}

func TestHistory_HeldButtonReportedEveryWindow(t *testing.T) {
	h := NewHistory(time.Second)
	raw := []byte{0x02, 0x01, 0x1A}

	// a remote resending every 100ms for 3.5s
	var reported []time.Duration
	for at := time.Duration(0); at <= 3500*time.Millisecond; at += 100 * time.Millisecond {
		if !h.Seen(raw, epoch.Add(at)) {
			reported = append(reported, at)
		}
	}

	assert.Equal(t, []time.Duration{0, time.Second, 2 * time.Second, 3 * time.Second}, reported)
	assert.Equal(t, 1, h.Len())
}

func TestHistory_Disabled(t *testing.T) {
	h := NewHistory(0)
	raw := []byte{0x01}
	assert.False(t, h.Seen(raw, epoch))
	assert.False(t, h.Seen(raw, epoch))
	assert.Equal(t, 0, h.Len())
}

// ============================================================
// Listener Tests
// ============================================================

func TestListener_Process(t *testing.T) {
	reg := bleadv.DefaultRegistry(bleadv.FixedSeed(0x0101))
	raw := encodeOne(t, reg, "zhijia - v2", bleadv.NewCommand(bleadv.CmdLightOn), bleadv.ControllerParams{ID: 0xC630B800})

	l := NewListener(reg, false, NewHistory(time.Second))

	res, ok := l.Process(Observation{Time: epoch, Address: "AA:BB", RSSI: -60, Raw: raw})
	require.True(t, ok)
	assert.Equal(t, "zhijia - v2", res.ID.Codec.ID())
	assert.Equal(t, "AA:BB", res.Address)
	assert.True(t, res.ID.NoDiff)

	_, ok = l.Process(Observation{Time: epoch.Add(100 * time.Millisecond), Raw: raw})
	assert.False(t, ok, "repeat within the window")

	_, ok = l.Process(Observation{Time: epoch, Raw: []byte{0x02, 0x01, 0x06}})
	assert.False(t, ok, "flags only")

	_, ok = l.Process(Observation{Time: epoch, Raw: []byte{0x05, 0xFF, 0x4C, 0x00, 0x01, 0x02}})
	assert.False(t, ok, "foreign vendor data")

	assert.Equal(t, uint64(4), l.Observed)
	assert.Equal(t, uint64(1), l.Duplicates)
	assert.Equal(t, uint64(2), l.Unidentified)
	assert.Equal(t, uint64(1), l.Identified)
}

func TestListener_RebuiltPayloadSkipsFlagCheck(t *testing.T) {
	reg := bleadv.DefaultRegistry(bleadv.FixedSeed(0x0202))
	raw := encodeOne(t, reg, "zhijia - v1", bleadv.NewCommand(bleadv.CmdLightOff), bleadv.ControllerParams{ID: 0x010203})

	// drop the flags TLV as a host stack would
	wp := bleadv.FromRaw(raw)
	require.True(t, wp.HasADFlag())
	rebuilt := raw[3:]

	l := NewListener(reg, false, nil)
	res, ok := l.Process(Observation{Time: epoch, Raw: rebuilt})
	require.True(t, ok)
	assert.Equal(t, "zhijia - v1", res.ID.Codec.ID())
}

type sliceSource []Observation

func (s sliceSource) Observe(ctx context.Context, out chan<- Observation) error {
	for _, obs := range s {
		select {
		case out <- obs:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func TestListener_Run(t *testing.T) {
	reg := bleadv.DefaultRegistry(bleadv.FixedSeed(0x0303))
	on := encodeOne(t, reg, "fanlamp_pro - v3", bleadv.NewCommand(bleadv.CmdLightOn), bleadv.ControllerParams{ID: 0x1234, TxCount: 3})
	off := encodeOne(t, reg, "fanlamp_pro - v3", bleadv.NewCommand(bleadv.CmdLightOff), bleadv.ControllerParams{ID: 0x1234, TxCount: 4})

	src := sliceSource{
		{Time: epoch, Raw: on},
		{Time: epoch.Add(10 * time.Millisecond), Raw: on},
		{Time: epoch.Add(20 * time.Millisecond), Raw: []byte{0x02, 0x01, 0x06}},
		{Time: epoch.Add(30 * time.Millisecond), Raw: off},
	}

	results := make(chan Result, 8)
	l := NewListener(reg, false, NewHistory(time.Second))
	require.NoError(t, l.Run(context.Background(), src, results))
	close(results)

	var got []Result
	for r := range results {
		got = append(got, r)
	}
	require.Len(t, got, 2)
	assert.Equal(t, on, got[0].Raw)
	assert.Equal(t, off, got[1].Raw)
	assert.Equal(t, uint8(4), got[0].ID.Params.TxCount)
	assert.Equal(t, uint8(5), got[1].ID.Params.TxCount)
}

func TestListener_RunCancelled(t *testing.T) {
	reg := bleadv.DefaultRegistry(nil)
	l := NewListener(reg, false, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := l.Run(ctx, blockingSource{}, make(chan Result))
	assert.ErrorIs(t, err, context.Canceled)
}

type blockingSource struct{}

func (blockingSource) Observe(ctx context.Context, _ chan<- Observation) error {
	<-ctx.Done()
	return ctx.Err()
}

// ============================================================
// Source Tests
// ============================================================

func TestRebuildPayload(t *testing.T) {
	raw := RebuildPayload(
		[]bluetooth.ManufacturerDataElement{{CompanyID: 0xFFF0, Data: []byte{0xAA, 0xBB}}},
		[]bluetooth.ServiceDataElement{
			{UUID: bluetooth.New16BitUUID(0xFDA1), Data: []byte{0x01}},
			{UUID: bluetooth.ServiceUUIDNordicUART, Data: []byte{0x02}},
		},
	)
	assert.Equal(t, []byte{
		0x05, 0xFF, 0xF0, 0xFF, 0xAA, 0xBB,
		0x04, 0x16, 0xA1, 0xFD, 0x01,
	}, raw)

	wp := bleadv.FromRaw(raw)
	assert.False(t, wp.HasADFlag())
	assert.Equal(t, uint8(bleadv.ADTypeServiceData16), wp.DataType())
}

func TestRebuildPayload_Oversize(t *testing.T) {
	raw := RebuildPayload([]bluetooth.ManufacturerDataElement{
		{CompanyID: 1, Data: make([]byte, 20)},
		{CompanyID: 2, Data: make([]byte, 20)},
	}, nil)
	assert.Len(t, raw, 24, "second element does not fit")
}

type pipe struct {
	io.Reader
	io.Writer
}

func TestLinkSource_Observe(t *testing.T) {
	captured := []byte{0x02, 0x01, 0x1A, 0x03, 0xFF, 0xF0, 0xFF}

	var stream bytes.Buffer
	enc := advlink.NewEncoder()
	for _, f := range []*advlink.Frame{
		advlink.NewPingResponse(0, time.Second),
		advlink.NewCaptured(0, captured, -71),
		advlink.NewError(0, advlink.ErrCodeRadio, "busy radio"),
		advlink.NewCaptured(0, nil, -50),
	} {
		data, err := enc.Encode(f)
		require.NoError(t, err)
		stream.Write(data)
	}

	src := NewLinkSource(advlink.NewLink(pipe{Reader: &stream, Writer: io.Discard}), "/dev/ttyACM0")
	out := make(chan Observation, 4)
	require.NoError(t, src.Observe(context.Background(), out))
	close(out)

	var got []Observation
	for obs := range out {
		got = append(got, obs)
	}
	require.Len(t, got, 1)
	assert.Equal(t, captured, got[0].Raw)
	assert.Equal(t, int16(-71), got[0].RSSI)
	assert.Equal(t, "/dev/ttyACM0", got[0].Address)
	assert.False(t, got[0].Time.IsZero())
}
