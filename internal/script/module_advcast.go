// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package script

import (
	"time"

	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"

	"github.com/Thermoquad/advcast/pkg/bleadv"
	"github.com/Thermoquad/advcast/pkg/controller"
)

// AdvcastModule exposes the controllers to Lua
type AdvcastModule struct {
	controllers Controllers
	sleep       SleepFunc
}

// NewAdvcastModule creates the advcast module
func NewAdvcastModule(controllers Controllers, sleep SleepFunc) *AdvcastModule {
	return &AdvcastModule{controllers: controllers, sleep: sleep}
}

// Loader is the module loader for Lua
func (m *AdvcastModule) Loader(L *lua.LState) int {
	mod := L.NewTable()

	L.SetField(mod, "send", L.NewFunction(m.send))
	L.SetField(mod, "supports", L.NewFunction(m.supports))
	L.SetField(mod, "pair", L.NewFunction(m.pair))
	L.SetField(mod, "unpair", L.NewFunction(m.unpair))
	L.SetField(mod, "custom", L.NewFunction(m.custom))
	L.SetField(mod, "pending", L.NewFunction(m.pending))
	L.SetField(mod, "controllers", L.NewFunction(m.list))
	L.SetField(mod, "sleep", L.NewFunction(m.sleepMs))

	L.Push(mod)
	return 1
}

func (m *AdvcastModule) checkController(L *lua.LState, n int) *controller.Controller {
	name := L.CheckString(n)
	c, ok := m.controllers.Controller(name)
	if !ok {
		L.ArgError(n, "unknown controller: "+name)
	}
	return c
}

func (m *AdvcastModule) checkKind(L *lua.LState, n int) bleadv.CommandKind {
	kind, err := bleadv.ParseCommandKind(L.CheckString(n))
	if err != nil {
		L.ArgError(n, err.Error())
	}
	return kind
}

// send(controller, kind, args...) -> bool
func (m *AdvcastModule) send(L *lua.LState) int {
	c := m.checkController(L, 1)
	kind := m.checkKind(L, 2)
	ok := c.Send(kind, byteArgs(L, 3)...)
	log.Debug().Str("source", "lua").Str("controller", c.Name()).Stringer("kind", kind).Bool("queued", ok).Msg("send")
	L.Push(lua.LBool(ok))
	return 1
}

// supports(controller, kind) -> bool
func (m *AdvcastModule) supports(L *lua.LState) int {
	c := m.checkController(L, 1)
	kind := m.checkKind(L, 2)
	cmd := bleadv.NewCommand(kind)
	if kind == bleadv.CmdCustom {
		cmd.Opcode = 1
	}
	L.Push(lua.LBool(c.IsSupported(cmd)))
	return 1
}

// pair(controller) -> bool
func (m *AdvcastModule) pair(L *lua.LState) int {
	L.Push(lua.LBool(m.checkController(L, 1).Pair()))
	return 1
}

// unpair(controller) -> bool
func (m *AdvcastModule) unpair(L *lua.LState) int {
	L.Push(lua.LBool(m.checkController(L, 1).Unpair()))
	return 1
}

// custom(controller, opcode, args...) -> bool
func (m *AdvcastModule) custom(L *lua.LState) int {
	c := m.checkController(L, 1)
	opcode := checkByte(L, 2)
	L.Push(lua.LBool(c.Custom(opcode, byteArgs(L, 3)...)))
	return 1
}

// pending(controller) -> number of queued commands
func (m *AdvcastModule) pending(L *lua.LState) int {
	L.Push(lua.LNumber(m.checkController(L, 1).Pending()))
	return 1
}

// controllers() -> array of {name, codec, id, index}
func (m *AdvcastModule) list(L *lua.LState) int {
	tbl := L.NewTable()
	for _, c := range m.controllers.Controllers() {
		params := c.Params()
		entry := L.NewTable()
		L.SetField(entry, "name", lua.LString(c.Name()))
		L.SetField(entry, "codec", lua.LString(c.Codec().ID()))
		L.SetField(entry, "id", lua.LNumber(params.ID))
		L.SetField(entry, "index", lua.LNumber(params.Index))
		tbl.Append(entry)
	}
	L.Push(tbl)
	return 1
}

// sleep(ms) blocks the script; raises when the run is cancelled
func (m *AdvcastModule) sleepMs(L *lua.LState) int {
	ms := L.CheckInt(1)
	if err := m.sleep(L.Context(), time.Duration(ms)*time.Millisecond); err != nil {
		L.RaiseError("sleep interrupted: %v", err)
	}
	return 0
}
