// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"go.bug.st/serial"
	"golang.org/x/term"

	"github.com/Thermoquad/advcast/internal/config"
)

// Connection carries advlink frames to and from an advertising bridge, over
// a serial port or a WebSocket
type Connection interface {
	io.Reader
	io.Writer
	io.Closer
}

// SerialConnection wraps a serial port
type SerialConnection struct {
	port serial.Port
}

func (s *SerialConnection) Read(p []byte) (int, error) {
	return s.port.Read(p)
}

func (s *SerialConnection) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *SerialConnection) Close() error {
	return s.port.Close()
}

// ErrConnectionClosed is returned when reading from a closed WebSocket connection
var ErrConnectionClosed = errors.New("websocket connection closed")

// WebSocketConnection streams binary WebSocket messages as one byte stream.
// Each Write is sent as a single binary message.
type WebSocketConnection struct {
	conn    *websocket.Conn
	reader  io.Reader // current message, nil between messages
	closed  bool
	writeMu sync.Mutex
}

func (w *WebSocketConnection) Read(p []byte) (int, error) {
	for {
		if w.closed {
			return 0, ErrConnectionClosed
		}

		if w.reader == nil {
			messageType, r, err := w.conn.NextReader()
			if err != nil {
				w.closed = true
				return 0, err
			}
			// advlink frames travel in binary messages only
			if messageType != websocket.BinaryMessage {
				continue
			}
			w.reader = r
		}

		n, err := w.reader.Read(p)
		if errors.Is(err, io.EOF) {
			w.reader = nil
			if n == 0 {
				continue
			}
			err = nil
		}
		return n, err
	}
}

func (w *WebSocketConnection) Write(p []byte) (int, error) {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *WebSocketConnection) Close() error {
	w.writeMu.Lock()
	_ = w.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	w.writeMu.Unlock()
	return w.conn.Close()
}

// OpenSerialConnection opens the bridge serial port and discards any bytes
// the bridge sent before the port was opened
func OpenSerialConnection(portName string, baudRate int) (Connection, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		log.Warn().Err(err).Str("port", portName).Msg("failed to flush serial input")
	}

	return &SerialConnection{port: port}, nil
}

// OpenWebSocketConnection dials a ws:// or wss:// bridge, with HTTP Basic
// auth when a username is given
func OpenWebSocketConnection(wsURL, username, password string, skipSSLVerify bool) (Connection, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	switch u.Scheme {
	case "ws":
	case "wss":
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: skipSSLVerify,
		}
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	headers := http.Header{}
	if username != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}

	return &WebSocketConnection{conn: conn}, nil
}

// bridgePassword reads ADVCAST_PASSWORD, or prompts on the terminal
func bridgePassword() (string, error) {
	if pw := os.Getenv("ADVCAST_PASSWORD"); pw != "" {
		return pw, nil
	}

	fd := int(os.Stdin.Fd())
	fmt.Fprint(os.Stderr, "Bridge password: ")
	defer fmt.Fprintln(os.Stderr)

	if term.IsTerminal(fd) {
		pw, err := term.ReadPassword(fd)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(pw), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// linkSettings applies the connection flags over the configured link
func linkSettings(link config.LinkConfig) config.LinkConfig {
	if portName != "" {
		link.Port = portName
		link.URL = ""
	}
	if rootCmd.PersistentFlags().Changed("baud") || link.Baud == 0 {
		link.Baud = baudRate
	}
	if wsURL != "" {
		link.URL = wsURL
		link.Port = ""
	}
	if wsUsername != "" {
		link.Username = wsUsername
	}
	if wsNoSSLVerify {
		link.NoSSLVerify = true
	}
	return link
}

// OpenConnection opens the bridge connection described by link and returns
// it with a one-line description for logs and TUI headers
func OpenConnection(link config.LinkConfig) (Connection, string, error) {
	switch {
	case link.URL != "":
		password := ""
		if link.Username != "" {
			var err error
			if password, err = bridgePassword(); err != nil {
				return nil, "", err
			}
		}
		conn, err := OpenWebSocketConnection(link.URL, link.Username, password, link.NoSSLVerify)
		if err != nil {
			return nil, "", err
		}
		return conn, fmt.Sprintf("WebSocket: %s", link.URL), nil

	case link.Port != "":
		conn, err := OpenSerialConnection(link.Port, link.Baud)
		if err != nil {
			return nil, "", err
		}
		return conn, fmt.Sprintf("Serial: %s @ %d baud", link.Port, link.Baud), nil
	}

	return nil, "", fmt.Errorf("no bridge configured: set radio.link.port or radio.link.url, or pass --port or --url")
}
