package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reminder-server/models"
	"reminder-server/scheduler"
	"reminder-server/store"
)

const wsTimeout = 2 * time.Second

type testServer struct {
	d    *Dispatcher
	srv  *httptest.Server
	repo store.Repository
}

func startServer(t *testing.T, repo store.Repository, opts WSOptions) *testServer {
	t.Helper()
	sched := scheduler.New(scheduler.SystemClock(), zerolog.Nop())
	d := NewDispatcher(sched, NewHub(zerolog.Nop()), repo, zerolog.Nop(), opts)
	require.NoError(t, d.Start(context.Background()))

	srv := httptest.NewServer(NewRouter(d, RouterOptions{MetricsEnabled: true}))
	t.Cleanup(func() {
		d.Close()
		srv.Close()
	})
	return &testServer{d: d, srv: srv, repo: repo}
}

// wsConn reads on its own goroutine so a test can wait for "nothing"
// without tripping the connection's read deadline.
type wsConn struct {
	conn *websocket.Conn
	msgs chan string
}

func (s *testServer) dial(t *testing.T, path string) *wsConn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	c := &wsConn{conn: conn, msgs: make(chan string, 64)}
	go func() {
		defer close(c.msgs)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			c.msgs <- string(msg)
		}
	}()
	t.Cleanup(func() { conn.Close() })
	return c
}

func (s *testServer) dialN(t *testing.T, n int) []*wsConn {
	t.Helper()
	conns := make([]*wsConn, n)
	for i := range conns {
		conns[i] = s.dial(t, "/")
	}
	require.Eventually(t, func() bool { return s.d.hub.Count() == n }, wsTimeout, 5*time.Millisecond)
	return conns
}

func (c *wsConn) send(t *testing.T, msg string) {
	t.Helper()
	require.NoError(t, c.conn.WriteMessage(websocket.TextMessage, []byte(msg)))
}

func (c *wsConn) next(t *testing.T) string {
	t.Helper()
	select {
	case msg, ok := <-c.msgs:
		require.True(t, ok, "connection closed")
		return msg
	case <-time.After(wsTimeout):
		t.Fatal("timed out waiting for a message")
		return ""
	}
}

func (c *wsConn) request(t *testing.T, msg string) string {
	t.Helper()
	c.send(t, msg)
	return c.next(t)
}

func (c *wsConn) quiet(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case msg, ok := <-c.msgs:
		if ok {
			t.Fatalf("unexpected message %q", msg)
		}
	case <-time.After(d):
	}
}

func inMillis(d time.Duration) int64 {
	return time.Now().Add(d).UnixMilli()
}

func TestScenario_FiresOnceAndLeavesActiveList(t *testing.T) {
	s := startServer(t, store.NewMemoryStore(), DefaultWSOptions())
	c := s.dialN(t, 1)[0]

	reply := c.request(t, registerCmd("", "Event1", inMillis(20*time.Millisecond)))
	assert.Equal(t, "Registered event reminder. We have 1 connected clients.", reply)

	assert.Equal(t, "We are reminding you from this event: Event1", c.next(t))
	assert.Equal(t, "[]", c.request(t, `{"type":"list-event-reminders"}`))
	c.quiet(t, 50*time.Millisecond)
}

func TestScenario_SameIDFiresNewPayloadOnly(t *testing.T) {
	s := startServer(t, store.NewMemoryStore(), DefaultWSOptions())
	c := s.dialN(t, 1)[0]

	fireAt := inMillis(150 * time.Millisecond)
	assert.Contains(t, c.request(t, registerCmd("X", "Old", fireAt)), "Registered")
	assert.Contains(t, c.request(t, registerCmd("X", "New", fireAt)), "Registered")

	assert.Equal(t, "We are reminding you from this event: New", c.next(t))
	c.quiet(t, 100*time.Millisecond)
}

func TestScenario_EveryClientReceivesBroadcastOnce(t *testing.T) {
	s := startServer(t, store.NewMemoryStore(), DefaultWSOptions())
	conns := s.dialN(t, 3)

	reply := conns[0].request(t, registerCmd("", "Standup", inMillis(30*time.Millisecond)))
	assert.Equal(t, "Registered event reminder. We have 3 connected clients.", reply)

	for _, c := range conns {
		assert.Equal(t, "We are reminding you from this event: Standup", c.next(t))
	}
	for _, c := range conns {
		c.quiet(t, 30*time.Millisecond)
	}
}

func TestScenario_ListReminders(t *testing.T) {
	s := startServer(t, store.NewMemoryStore(), DefaultWSOptions())
	c := s.dialN(t, 1)[0]

	assert.Equal(t, "[]", c.request(t, `{"type":"list-event-reminders"}`))

	c.request(t, registerCmd("", "Dentist", inMillis(time.Hour)))
	c.request(t, registerCmd("", "Gym", inMillis(2*time.Hour)))

	var listed []models.Reminder
	require.NoError(t, json.Unmarshal([]byte(c.request(t, `{"type":"list-event-reminders"}`)), &listed))
	require.Len(t, listed, 2)
	assert.Equal(t, "Dentist", listed[0].Name)
	assert.Equal(t, "Gym", listed[1].Name)
}

func TestScenario_MalformedPayloadOnlyAffectsSender(t *testing.T) {
	s := startServer(t, store.NewMemoryStore(), DefaultWSOptions())
	conns := s.dialN(t, 2)

	assert.Contains(t, conns[0].request(t, "malformed message"), "Error")
	conns[1].quiet(t, 100*time.Millisecond)

	assert.True(t, strings.HasPrefix(conns[0].request(t, `{"type":"now"}`), "Current time: "))
	assert.Equal(t, 2, s.d.hub.Count())
}

func TestWebSocket_UnregisterPreventsFire(t *testing.T) {
	s := startServer(t, store.NewMemoryStore(), DefaultWSOptions())
	c := s.dialN(t, 1)[0]

	c.request(t, registerCmd("gone", "Cancelled", inMillis(80*time.Millisecond)))
	assert.Equal(t, "Unregistered event reminder gone", c.request(t, `{"type":"unregister-event-reminder","id":"gone"}`))
	c.quiet(t, 150*time.Millisecond)
}

func TestWebSocket_ReminderSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	first, err := store.NewFileStore(dir)
	require.NoError(t, err)

	s1 := startServer(t, first, DefaultWSOptions())
	c1 := s1.dialN(t, 1)[0]
	c1.request(t, registerCmd("persist", "This event survived an app restart", inMillis(300*time.Millisecond)))
	s1.d.Close()
	s1.srv.Close()

	second, err := store.NewFileStore(dir)
	require.NoError(t, err)
	s2 := startServer(t, second, DefaultWSOptions())
	c2 := s2.dialN(t, 1)[0]

	assert.Equal(t, "We are reminding you from this event: This event survived an app restart", c2.next(t))
	require.Eventually(t, func() bool {
		all, err := second.FindAll(context.Background())
		return err == nil && len(all) == 0
	}, wsTimeout, 10*time.Millisecond)
}

func TestWebSocket_RateLimit(t *testing.T) {
	opts := DefaultWSOptions()
	opts.MessagesPerSecond = 0.5
	opts.Burst = 1
	s := startServer(t, store.NewMemoryStore(), opts)
	c := s.dialN(t, 1)[0]

	assert.True(t, strings.HasPrefix(c.request(t, `{"type":"now"}`), "Current time: "))
	assert.Equal(t, models.RateLimitedReply, c.request(t, `{"type":"now"}`))
}

func TestWebSocket_WSPathAndOversizedMessage(t *testing.T) {
	opts := DefaultWSOptions()
	opts.MaxMessageSize = 64
	s := startServer(t, store.NewMemoryStore(), opts)
	c := s.dial(t, "/ws")

	assert.Equal(t, "[]", c.request(t, `{"type":"list-event-reminders"}`))

	c.send(t, `{"type":"now","name":"`+strings.Repeat("x", 128)+`"}`)
	select {
	case _, ok := <-c.msgs:
		assert.False(t, ok, "oversized message should close the connection")
	case <-time.After(wsTimeout):
		t.Fatal("connection stayed open")
	}
	require.Eventually(t, func() bool { return s.d.hub.Count() == 0 }, wsTimeout, 5*time.Millisecond)
}

func TestRouter_Health(t *testing.T) {
	s := startServer(t, store.NewMemoryStore(), DefaultWSOptions())

	resp, err := http.Get(s.srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var info healthInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	assert.Equal(t, "ok", info.Status)
	assert.True(t, info.Ready)
}

func TestRouter_Metrics(t *testing.T) {
	s := startServer(t, store.NewMemoryStore(), DefaultWSOptions())

	resp, err := http.Get(s.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
