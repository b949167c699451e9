// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package advlink

import (
	"fmt"
	"io"
	"sync"
)

// Link sends and receives frames over a byte stream such as a serial port or
// a WebSocket. Send is safe for concurrent use; Receive must be called from a
// single goroutine.
type Link struct {
	mu  sync.Mutex
	rw  io.ReadWriter
	enc *Encoder
	dec *Decoder
}

// NewLink wraps rw
func NewLink(rw io.ReadWriter) *Link {
	return &Link{
		rw:  rw,
		enc: NewEncoder(),
		dec: NewDecoder(),
	}
}

// Send numbers and writes f, returning its sequence number
func (l *Link) Send(f *Frame) (uint16, error) {
	data, err := l.enc.Encode(f)
	if err != nil {
		return 0, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.rw.Write(data); err != nil {
		return 0, fmt.Errorf("failed to write %s frame: %w", FormatMessageType(f.Type()), err)
	}
	return f.Seq(), nil
}

// Receive blocks until the next valid frame arrives. Corrupt frames are
// reported to onError, when set, and skipped.
func (l *Link) Receive(onError func(error)) (*Frame, error) {
	return l.dec.ReadFrame(l.rw, onError)
}
