package notify

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
)

func TestServe_DeliversPublishedEvents(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	done := make(chan error, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		done <- Serve(w, r, hub, "alice", time.Second)
	}))
	defer srv.Close()

	ctx := t.Context()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer func() { _ = conn.CloseNow() }()

	require.Eventually(t, func() bool { return hub.Count("alice") == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, hub.PublishJSON(ctx, "alice", CloneEvent{OwnerID: "alice", RepoName: "r", Message: EventFailed}))

	typ, data, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, websocket.MessageText, typ)
	assert.JSONEq(t, `{"owner_id":"alice","repo_name":"r","message":"FAILED"}`, string(data))

	// client messages are ignored
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte("ping")))

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, "bye"))
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not return after close")
	}
	assert.Equal(t, 0, hub.Count("alice"))
}

func TestNewWebsocketChannel_DefaultTimeout(t *testing.T) {
	t.Parallel()

	a := NewWebsocketChannel(nil, 0)
	b := NewWebsocketChannel(nil, time.Second)
	assert.Equal(t, DefaultWriteTimeout, a.writeTimeout)
	assert.Equal(t, time.Second, b.writeTimeout)
	assert.NotEqual(t, a.ID(), b.ID())
}
