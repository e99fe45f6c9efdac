// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 HWHardsoft

package cmd

import (
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bridge is a WebSocket server standing in for the display bridge.
type bridge struct {
	srv      *httptest.Server
	auth     chan string
	received chan []byte
	msgType  chan int
	send     chan bridgeMessage
}

type bridgeMessage struct {
	kind int
	data []byte
}

func newBridge(t *testing.T) *bridge {
	t.Helper()
	b := &bridge{
		auth:     make(chan string, 1),
		received: make(chan []byte, 8),
		msgType:  make(chan int, 8),
		send:     make(chan bridgeMessage, 8),
	}
	upgrader := websocket.Upgrader{}
	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.auth <- r.Header.Get("Authorization")
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		go func() {
			for {
				kind, data, err := ws.ReadMessage()
				if err != nil {
					return
				}
				b.msgType <- kind
				b.received <- data
			}
		}()

		for msg := range b.send {
			if msg.kind == websocket.CloseMessage {
				ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := ws.WriteMessage(msg.kind, msg.data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(func() {
		close(b.send)
		b.srv.Close()
	})
	return b
}

func (b *bridge) url() string {
	return "ws" + strings.TrimPrefix(b.srv.URL, "http")
}

func readAll(t *testing.T, conn Connection, n int) []byte {
	t.Helper()
	out := make([]byte, 0, n)
	buf := make([]byte, 4)
	deadline := time.Now().Add(2 * time.Second)
	for len(out) < n {
		require.True(t, time.Now().Before(deadline), "timed out after %q", out)
		k, err := conn.Read(buf)
		require.NoError(t, err)
		out = append(out, buf[:k]...)
	}
	return out
}

func TestWebSocketConnectionReadsTextAndBinary(t *testing.T) {
	b := newBridge(t)
	conn, err := OpenWebSocketConnection(b.url(), "", "", false)
	require.NoError(t, err)
	defer conn.Close()

	b.send <- bridgeMessage{websocket.TextMessage, []byte("id13=4|")}
	b.send <- bridgeMessage{websocket.BinaryMessage, []byte{}}
	b.send <- bridgeMessage{websocket.BinaryMessage, []byte("id10=1|")}

	// Small reads split a message across calls
	assert.Equal(t, "id13=4|id10=1|", string(readAll(t, conn, 14)))
}

func TestWebSocketConnectionWritesBinary(t *testing.T) {
	b := newBridge(t)
	conn, err := OpenWebSocketConnection(b.url(), "", "", false)
	require.NoError(t, err)
	defer conn.Close()

	push := []byte{'I', 'D', '1', '.', 'v', 'a', 'l', '=', '2', '2', 0xFF, 0xFF, 0xFF}
	n, err := conn.Write(push)
	require.NoError(t, err)
	assert.Equal(t, len(push), n)

	select {
	case kind := <-b.msgType:
		assert.Equal(t, websocket.BinaryMessage, kind)
		assert.Equal(t, push, <-b.received)
	case <-time.After(2 * time.Second):
		t.Fatal("bridge received nothing")
	}
}

func TestWebSocketConnectionClosed(t *testing.T) {
	b := newBridge(t)
	conn, err := OpenWebSocketConnection(b.url(), "", "", false)
	require.NoError(t, err)
	defer conn.Close()

	b.send <- bridgeMessage{kind: websocket.CloseMessage}

	buf := make([]byte, 16)
	_, err = conn.Read(buf)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnectionClosed)
	assert.ErrorIs(t, err, net.ErrClosed)
	assert.True(t, isClosed(err))

	// Every later read fails the same way
	_, err = conn.Read(buf)
	assert.ErrorIs(t, err, ErrConnectionClosed)
}

func TestWebSocketBasicAuth(t *testing.T) {
	b := newBridge(t)
	conn, err := OpenWebSocketConnection(b.url(), "display", "secret", false)
	require.NoError(t, err)
	defer conn.Close()

	// base64("display:secret")
	assert.Equal(t, "Basic ZGlzcGxheTpzZWNyZXQ=", <-b.auth)
}

func TestOpenWebSocketConnectionRejectsScheme(t *testing.T) {
	_, err := OpenWebSocketConnection("http://localhost/display", "", "", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported URL scheme")
}

func TestIsClosed(t *testing.T) {
	assert.True(t, isClosed(io.EOF))
	assert.True(t, isClosed(io.ErrClosedPipe))
	assert.True(t, isClosed(net.ErrClosed))
	assert.False(t, isClosed(errors.New("framing error")))
	assert.False(t, isClosed(nil))
}
