// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package controller

import (
	"context"
	"fmt"
	"time"

	"github.com/Thermoquad/advcast/pkg/advertiser"
)

// DefaultTickInterval is the driver period used when none is configured
const DefaultTickInterval = 10 * time.Millisecond

// Driver ticks every controller, then the scheduler, from one goroutine
type Driver struct {
	scheduler   *advertiser.Scheduler
	controllers []*Controller
	byName      map[string]*Controller
}

// NewDriver creates a driver. Controller names must be unique.
func NewDriver(scheduler *advertiser.Scheduler, controllers ...*Controller) (*Driver, error) {
	d := &Driver{
		scheduler: scheduler,
		byName:    make(map[string]*Controller, len(controllers)),
	}
	for _, c := range controllers {
		if _, dup := d.byName[c.Name()]; dup {
			return nil, fmt.Errorf("duplicate controller name %q", c.Name())
		}
		d.byName[c.Name()] = c
		d.controllers = append(d.controllers, c)
	}
	return d, nil
}

// Controllers returns the controllers in configuration order
func (d *Driver) Controllers() []*Controller {
	return append([]*Controller(nil), d.controllers...)
}

// Controller returns the controller called name
func (d *Driver) Controller(name string) (*Controller, bool) {
	c, ok := d.byName[name]
	return c, ok
}

// Scheduler returns the shared scheduler
func (d *Driver) Scheduler() *advertiser.Scheduler {
	return d.scheduler
}

// Tick advances every controller and then the scheduler to now
func (d *Driver) Tick(now time.Time) {
	for _, c := range d.controllers {
		c.Tick(now)
	}
	d.scheduler.Tick(now)
}

// Run ticks every interval until ctx is cancelled. On exit every controller
// is closed and the radio is stopped.
func (d *Driver) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			for _, c := range d.controllers {
				c.Close()
			}
			d.scheduler.Shutdown()
			return ctx.Err()
		case <-ticker.C:
			d.Tick(d.scheduler.Now())
		}
	}
}
