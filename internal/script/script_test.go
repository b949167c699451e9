// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package script

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/advcast/pkg/advertiser"
	"github.com/Thermoquad/advcast/pkg/bleadv"
	"github.com/Thermoquad/advcast/pkg/controller"
)

func newTestDriver(t *testing.T) *controller.Driver {
	t.Helper()
	sched := advertiser.NewScheduler(&advertiser.RecordingRadio{})
	reg := bleadv.DefaultRegistry(bleadv.FixedSeed(5))

	fan, err := controller.New(controller.Config{Name: "fan", Codec: "fanlamp_pro - v3"}, reg, sched, nil)
	require.NoError(t, err)
	lamp, err := controller.New(controller.Config{Name: "lamp", Codec: "zhijia - v1"}, reg, sched, nil)
	require.NoError(t, err)

	d, err := controller.NewDriver(sched, fan, lamp)
	require.NoError(t, err)
	return d
}

func controllerNamed(t *testing.T, d *controller.Driver, name string) *controller.Controller {
	t.Helper()
	c, ok := d.Controller(name)
	require.True(t, ok)
	return c
}

func TestRunString_Send(t *testing.T) {
	d := newTestDriver(t)
	r := NewRunner(d)

	err := r.RunString(context.Background(), "send.lua", `
		local advcast = require("advcast")
		assert(advcast.send("fan", "light_on"))
		assert(advcast.send("fan", "light_dim", 128))
		assert(advcast.pending("fan") == 2)
		assert(not advcast.send("lamp", "fan_dir", 1), "zhijia has no direction")
		assert(advcast.pair("lamp"))
	`)
	require.NoError(t, err)

	assert.Equal(t, []bleadv.CommandKind{bleadv.CmdLightOn, bleadv.CmdLightDim},
		controllerNamed(t, d, "fan").PendingKinds())
	assert.Equal(t, []bleadv.CommandKind{bleadv.CmdPair},
		controllerNamed(t, d, "lamp").PendingKinds())
}

func TestRunString_Custom(t *testing.T) {
	d := newTestDriver(t)
	r := NewRunner(d)

	err := r.RunString(context.Background(), "custom.lua", `
		local advcast = require("advcast")
		assert(not advcast.custom("fan", 0), "opcode 0 is not a command")
		assert(advcast.custom("fan", 0x10, 1, 2))
		assert(advcast.supports("fan", "custom"))
		assert(not advcast.supports("lamp", "fan_osc"))
	`)
	require.NoError(t, err)
	assert.Equal(t, 1, controllerNamed(t, d, "fan").Pending())
}

func TestRunString_Controllers(t *testing.T) {
	r := NewRunner(newTestDriver(t))

	err := r.RunString(context.Background(), "list.lua", `
		local advcast = require("advcast")
		local list = advcast.controllers()
		assert(#list == 2)
		assert(list[1].name == "fan")
		assert(list[1].codec == "fanlamp_pro - v3")
		assert(list[2].codec == "zhijia - v1")
	`)
	require.NoError(t, err)
}

func TestRunString_Errors(t *testing.T) {
	r := NewRunner(newTestDriver(t))

	tests := []struct {
		name   string
		source string
		errMsg string
	}{
		{"unknown controller", `require("advcast").send("nobody", "light_on")`, "unknown controller"},
		{"unknown kind", `require("advcast").send("fan", "light_blink")`, "unknown command kind"},
		{"byte range", `require("advcast").send("fan", "light_dim", 300)`, "out of byte range"},
		{"syntax", `this is not lua`, "failed to load"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.RunString(context.Background(), tt.name, tt.source)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestRunString_Sleep(t *testing.T) {
	var slept []time.Duration
	r := NewRunner(newTestDriver(t), WithSleep(func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}))

	err := r.RunString(context.Background(), "sleep.lua", `
		local advcast = require("advcast")
		advcast.sleep(250)
		advcast.sleep(1000)
	`)
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{250 * time.Millisecond, time.Second}, slept)
}

func TestRunString_Cancelled(t *testing.T) {
	r := NewRunner(newTestDriver(t))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := r.RunString(ctx, "forever.lua", `
		local advcast = require("advcast")
		while true do advcast.sleep(5) end
	`)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunString_Log(t *testing.T) {
	r := NewRunner(newTestDriver(t))
	err := r.RunString(context.Background(), "log.lua", `
		local log = require("log")
		log.info("hello", {count = 3, tags = {"a", "b"}})
		log.debug("quiet")
	`)
	require.NoError(t, err)
}

func TestLuaToGo(t *testing.T) {
	r := NewRunner(newTestDriver(t))
	L := r.newState(context.Background())
	defer L.Close()

	require.NoError(t, L.DoString(`value = {1, 2, {x = "y"}}`))
	got := LuaToGo(L.GetGlobal("value"))
	assert.Equal(t, []any{float64(1), float64(2), map[string]any{"x": "y"}}, got)
}
