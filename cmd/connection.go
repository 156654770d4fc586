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
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"go.bug.st/serial"
	"golang.org/x/term"
)

// passwordEnv names the variable holding the WebSocket password. There is no
// --password flag.
const passwordEnv = "POTMOUSE_PASSWORD"

const (
	dialTimeout  = 15 * time.Second
	closeTimeout = time.Second
)

var errNoConnection = errors.New("either --port or --url must be specified")

// ErrConnectionClosed is returned once the bridge ended the stream.
var ErrConnectionClosed = errors.New("connection closed")

// Connection is a tap on the bridge's PS/2 receive line: every byte the
// mouse sent, in wire order. String describes the endpoint.
type Connection interface {
	io.ReadCloser
	fmt.Stringer
}

// serialTap reads the byte stream from a USB serial adapter.
type serialTap struct {
	serial.Port
	name string
	baud int
}

func (s *serialTap) String() string {
	return fmt.Sprintf("Serial: %s @ %d baud", s.name, s.baud)
}

// wsTap reads the byte stream from a bridge behind a WebSocket relay. Binary
// messages carry PS/2 bytes; text messages are bridge console lines and go
// to the log.
type wsTap struct {
	conn    *websocket.Conn
	url     string
	pending []byte
	err     error
}

func (w *wsTap) String() string { return "WebSocket: " + w.url }

func (w *wsTap) Read(p []byte) (int, error) {
	for len(w.pending) == 0 {
		if w.err != nil {
			return 0, w.err
		}
		kind, data, err := w.conn.ReadMessage()
		switch {
		case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
			w.err = ErrConnectionClosed
		case err != nil:
			w.err = fmt.Errorf("websocket read: %w", err)
		case kind == websocket.TextMessage:
			log.WithField("console", strings.TrimRight(string(data), "\r\n")).Debug("bridge")
		default:
			w.pending = data
		}
	}
	n := copy(p, w.pending)
	w.pending = w.pending[n:]
	return n, nil
}

// Close says goodbye before dropping the socket.
func (w *wsTap) Close() error {
	bye := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	w.conn.WriteControl(websocket.CloseMessage, bye, time.Now().Add(closeTimeout))
	return w.conn.Close()
}

func openSerial(name string, baud int) (*serialTap, error) {
	port, err := serial.Open(name, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", name, err)
	}
	return &serialTap{Port: port, name: name, baud: baud}, nil
}

// dialWebSocket connects to a relay. user may be nil; otherwise its
// credentials are sent as HTTP Basic auth.
func dialWebSocket(ctx context.Context, rawURL string, user *url.Userinfo, insecure bool) (*wsTap, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("unsupported URL scheme %q (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: insecure}
	}

	header := http.Header{}
	if user != nil {
		pw, _ := user.Password()
		token := base64.StdEncoding.EncodeToString([]byte(user.Username() + ":" + pw))
		header.Set("Authorization", "Basic "+token)
	}

	conn, resp, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket handshake (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	return &wsTap{conn: conn, url: u.String()}, nil
}

// readPassword takes the password from the environment, a hidden terminal
// prompt, or the first line of a piped stdin.
func readPassword() (string, error) {
	if pw := os.Getenv(passwordEnv); pw != "" {
		return pw, nil
	}

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, "Password: ")
		pw, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(pw), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// OpenConnection opens the tap named by the merged flags and configuration
// file. A WebSocket URL wins over a serial port.
func OpenConnection() (Connection, error) {
	switch {
	case cfg.URL != "":
		var user *url.Userinfo
		if cfg.Username != "" {
			pw, err := readPassword()
			if err != nil {
				return nil, err
			}
			user = url.UserPassword(cfg.Username, pw)
		}

		ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
		defer cancel()
		conn, err := dialWebSocket(ctx, cfg.URL, user, wsNoSSLVerify)
		if err != nil {
			return nil, err
		}
		log.WithField("url", cfg.URL).Debug("websocket connected")
		return conn, nil

	case cfg.Port != "":
		conn, err := openSerial(cfg.Port, cfg.Baud)
		if err != nil {
			return nil, err
		}
		log.WithFields(logrus.Fields{"port": cfg.Port, "baud": cfg.Baud}).Debug("serial port open")
		return conn, nil
	}

	return nil, errNoConnection
}
