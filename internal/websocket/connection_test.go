package websocket

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
)

// upgradedConnection runs a throwaway server, upgrades one connection
// and hands back the server-side wrapper.
func upgradedConnection(t *testing.T) *Connection {
	t.Helper()

	connCh := make(chan *Connection, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		connCh <- NewConnection(conn)
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	c := <-connCh
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestConnection_WriteAfterClose(t *testing.T) {
	c := upgradedConnection(t)

	if err := c.WriteJSON(map[string]string{"status": "success"}); err != nil {
		t.Fatalf("write on open connection failed: %v", err)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	if err := c.WriteJSON(map[string]string{"status": "success"}); !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("write after close: err = %v, want ErrConnectionClosed", err)
	}
}

func TestConnection_CloseIsIdempotent(t *testing.T) {
	c := upgradedConnection(t)

	if err := c.Close(); err != nil {
		t.Fatalf("first close failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second close failed: %v", err)
	}

	select {
	case <-c.Context().Done():
	default:
		t.Error("context not cancelled after close")
	}
}

func TestConnection_HasIdentity(t *testing.T) {
	c := upgradedConnection(t)

	if c.ID() == "" {
		t.Error("connection has no ID")
	}
	if c.RemoteAddr() == "" {
		t.Error("connection has no remote address")
	}
}
