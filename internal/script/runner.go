// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package script runs Lua automation against the configured controllers.
//
// Scripts load two modules:
//
//	local advcast = require("advcast")
//	local log = require("log")
//
//	advcast.send("Living Room Fan", "light_on")
//	advcast.sleep(500)
//	advcast.send("Living Room Fan", "light_dim", 128)
package script

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"

	"github.com/Thermoquad/advcast/pkg/controller"
)

// Controllers is the set of controllers a script may drive
type Controllers interface {
	Controller(name string) (*controller.Controller, bool)
	Controllers() []*controller.Controller
}

// SleepFunc blocks for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

func contextSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Runner executes scripts, each on a fresh Lua state
type Runner struct {
	controllers Controllers
	sleep       SleepFunc
}

// Option configures a Runner
type Option func(*Runner)

// WithSleep replaces the blocking sleep used by advcast.sleep
func WithSleep(sleep SleepFunc) Option {
	return func(r *Runner) {
		r.sleep = sleep
	}
}

// NewRunner creates a runner driving controllers
func NewRunner(controllers Controllers, opts ...Option) *Runner {
	r := &Runner{
		controllers: controllers,
		sleep:       contextSleep,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runner) newState(ctx context.Context) *lua.LState {
	L := lua.NewState()
	L.SetContext(ctx)
	L.PreloadModule("advcast", NewAdvcastModule(r.controllers, r.sleep).Loader)
	L.PreloadModule("log", NewLogModule().Loader)
	return L
}

// RunString executes source. name labels the chunk in errors and logs.
func (r *Runner) RunString(ctx context.Context, name, source string) error {
	L := r.newState(ctx)
	defer L.Close()

	log.Info().Str("script", name).Msg("script started")
	fn, err := L.Load(stringReader(source), name)
	if err != nil {
		return fmt.Errorf("failed to load script %s: %w", name, err)
	}
	L.Push(fn)
	if err := L.PCall(0, lua.MultRet, nil); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("script %s failed: %w", name, err)
	}
	log.Info().Str("script", name).Msg("script finished")
	return nil
}

// RunFile executes the script at path
func (r *Runner) RunFile(ctx context.Context, path string) error {
	source, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read script: %w", err)
	}
	return r.RunString(ctx, path, string(source))
}
