package ws_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/codepractice.net/internal/adapter/logging"
	"gitlab.com/codepractice.net/internal/adapter/redis/sessionport"
	"gitlab.com/codepractice.net/internal/config"
	"gitlab.com/codepractice.net/internal/core/services/session"
	"gitlab.com/codepractice.net/internal/domain"
	"gitlab.com/codepractice.net/internal/push"
	"gitlab.com/codepractice.net/internal/push/handlers"
	"gitlab.com/codepractice.net/internal/push/registry"
	"gitlab.com/codepractice.net/internal/push/ws"
)

type env struct {
	registry    *registry.Registry
	broadcaster *push.Broadcaster
	server      *ws.Server
	url         string
}

func setup(t *testing.T, cfg *config.PushCfg) *env {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := logging.NewNopLogger()
	reg := registry.New()
	svc := session.NewSessionService(reg, sessionport.NewSessionRepository(client, time.Minute, logger), logger)
	server := ws.NewServer(cfg, svc, handlers.NewEventHandlers(svc, logger), logger)

	httpServer := httptest.NewServer(server)
	t.Cleanup(func() {
		server.Shutdown()
		httpServer.Close()
	})

	return &env{
		registry:    reg,
		broadcaster: push.NewBroadcaster(reg, time.Second, logger),
		server:      server,
		url:         "ws" + strings.TrimPrefix(httpServer.URL, "http"),
	}
}

func defaultCfg() *config.PushCfg {
	return &config.PushCfg{
		WriteTimeout:    time.Second,
		JoinTimeout:     5 * time.Second,
		AllowedOrigins:  []string{"*"},
		MaxMessageBytes: 64 * 1024,
	}
}

func dial(t *testing.T, e *env) (*websocket.Conn, string) {
	t.Helper()
	c, _, err := websocket.DefaultDialer.Dial(e.url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	frame := read(t, c)
	require.Equal(t, push.EventConnected, frame.Event)
	var data push.ConnectedData
	require.NoError(t, json.Unmarshal(frame.Data, &data))
	require.NotEmpty(t, data.ConnectionID)
	return c, data.ConnectionID
}

func read(t *testing.T, c *websocket.Conn) ws.Frame {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := c.ReadMessage()
	require.NoError(t, err)
	var frame ws.Frame
	require.NoError(t, json.Unmarshal(data, &frame))
	return frame
}

func send(t *testing.T, c *websocket.Conn, frame string) {
	t.Helper()
	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte(frame)))
}

func join(t *testing.T, e *env, c *websocket.Conn, connID string, userID int64) {
	t.Helper()
	payload, _ := json.Marshal(map[string]interface{}{"event": push.EventJoin, "data": map[string]int64{"user_id": userID}})
	send(t, c, string(payload))
	require.Eventually(t, func() bool {
		owner, ok := e.registry.UserOf(connID)
		return ok && owner == userID
	}, 2*time.Second, 5*time.Millisecond)
}

func deliver(t *testing.T, e *env, body string) int {
	t.Helper()
	r, err := domain.ParseSubmissionResult([]byte(body))
	require.NoError(t, err)
	n, err := e.broadcaster.Deliver(context.Background(), r)
	require.NoError(t, err)
	return n
}

func TestWebSocket_JoinAndReceiveResult(t *testing.T) {
	e := setup(t, defaultCfg())
	tab1, id1 := dial(t, e)
	tab2, id2 := dial(t, e)
	other, otherID := dial(t, e)
	join(t, e, tab1, id1, 42)
	join(t, e, tab2, id2, 42)
	join(t, e, other, otherID, 7)

	body := `{"submission_id":7,"user_id":42,"status":"ACCEPTED"}`
	assert.Equal(t, 2, deliver(t, e, body))

	for _, c := range []*websocket.Conn{tab1, tab2} {
		frame := read(t, c)
		assert.Equal(t, push.EventResult, frame.Event)
		assert.JSONEq(t, body, string(frame.Data))
	}

	send(t, other, `{"event":"ping"}`)
	assert.Equal(t, push.EventPong, read(t, other).Event, "the other user's socket only sees its own traffic")
}

func TestWebSocket_LeaveStopsDelivery(t *testing.T) {
	e := setup(t, defaultCfg())
	c, id := dial(t, e)
	join(t, e, c, id, 42)

	send(t, c, `{"event":"leave_submission_room","data":{"user_id":42}}`)
	require.Eventually(t, func() bool { return len(e.registry.ConnectionsFor(42)) == 0 }, 2*time.Second, 5*time.Millisecond)

	assert.Zero(t, deliver(t, e, `{"submission_id":7,"user_id":42}`))
}

func TestWebSocket_DisconnectUnregisters(t *testing.T) {
	e := setup(t, defaultCfg())
	c, id := dial(t, e)
	join(t, e, c, id, 42)

	require.NoError(t, c.Close())
	require.Eventually(t, func() bool { return e.registry.Len() == 0 && e.server.Len() == 0 }, 2*time.Second, 5*time.Millisecond)
	assert.Zero(t, deliver(t, e, `{"submission_id":7,"user_id":42}`))
}

func TestWebSocket_ErrorsKeepConnectionOpen(t *testing.T) {
	e := setup(t, defaultCfg())
	c, _ := dial(t, e)

	send(t, c, `{"event":"subscribe_everything"}`)
	frame := read(t, c)
	require.Equal(t, push.EventError, frame.Event)
	var data push.ErrorData
	require.NoError(t, json.Unmarshal(frame.Data, &data))
	assert.Equal(t, push.CodeUnknownEvent, data.Code)

	send(t, c, `garbage`)
	assert.Equal(t, push.EventError, read(t, c).Event)

	send(t, c, `{"event":"join_submission_room","data":{}}`)
	assert.Equal(t, push.EventError, read(t, c).Event)

	send(t, c, `{"event":"ping"}`)
	assert.Equal(t, push.EventPong, read(t, c).Event)
}

func TestWebSocket_JoinTimeout(t *testing.T) {
	cfg := defaultCfg()
	cfg.JoinTimeout = 100 * time.Millisecond
	e := setup(t, cfg)
	c, _ := dial(t, e)

	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := c.ReadMessage()
	assert.Error(t, err, "a client that never joins is disconnected")
}

func TestWebSocket_JoinClearsTimeout(t *testing.T) {
	cfg := defaultCfg()
	cfg.JoinTimeout = 100 * time.Millisecond
	e := setup(t, cfg)
	c, id := dial(t, e)
	join(t, e, c, id, 42)

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 1, deliver(t, e, `{"submission_id":7,"user_id":42}`))
	assert.Equal(t, push.EventResult, read(t, c).Event)
}

func TestWebSocket_RejectsForeignOrigin(t *testing.T) {
	cfg := defaultCfg()
	cfg.AllowedOrigins = []string{"https://app.example.com"}
	e := setup(t, cfg)

	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(e.url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header.Set("Origin", "https://app.example.com")
	c, _, err := websocket.DefaultDialer.Dial(e.url, header)
	require.NoError(t, err)
	_ = c.Close()
}

func TestWebSocket_ShutdownClosesSockets(t *testing.T) {
	e := setup(t, defaultCfg())
	c, _ := dial(t, e)

	e.server.Shutdown()

	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := c.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}

func TestWebSocket_ResultBytesAreUnchanged(t *testing.T) {
	e := setup(t, defaultCfg())
	c, id := dial(t, e)
	join(t, e, c, id, 42)

	body := `{"submission_id": 7, "user_id": 42, "stderr": "a<b && c>d"}`
	require.Equal(t, 1, deliver(t, e, body))

	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := c.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, `{"event":"submission_result","data":`+body+`}`, string(raw))
}
