package handler_test

import (
	"encoding/json"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hifz-api/internal/dto"
	"github.com/noah-isme/hifz-api/internal/observability"
)

func TestNotificationInboxAndMarkRead(t *testing.T) {
	ta := newTestApp(t)
	createAssignment(t, ta)

	resp := ta.do(t, &studentCaller, http.MethodGet, "/api/v1/notifications?unread=true", nil)
	require.Equal(t, http.StatusOK, resp.status, string(resp.raw))
	items := resp.body["notifications"].([]interface{})
	require.Len(t, items, 1)
	first := items[0].(map[string]interface{})
	require.Equal(t, "assignment.assigned", first["type"])

	id := idOf(t, first)
	resp = ta.do(t, &teacherCaller, http.MethodPatch, "/api/v1/notifications/"+itoa(id)+"/read", nil)
	require.Equal(t, http.StatusNotFound, resp.status)

	resp = ta.do(t, &studentCaller, http.MethodPatch, "/api/v1/notifications/"+itoa(id)+"/read", nil)
	require.Equal(t, http.StatusOK, resp.status, string(resp.raw))
	require.Equal(t, true, resp.entity("notification")["read"])

	resp = ta.do(t, &studentCaller, http.MethodGet, "/api/v1/notifications?unread=true", nil)
	require.Equal(t, http.StatusOK, resp.status)
	require.Empty(t, resp.body["notifications"])
}

// serve runs the app on a loopback listener and returns its address.
func (ta testApp) serve(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = ta.app.Listener(ln) }()
	return ln.Addr().String()
}

func dialNotifications(t *testing.T, addr string, who caller) *websocket.Conn {
	t.Helper()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+signToken(t, who))
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/api/v1/notifications/ws", header)
	require.NoError(t, err)
	return conn
}

func TestNotificationWebsocketStream(t *testing.T) {
	ta := newTestApp(t)
	conn := dialNotifications(t, ta.serve(t), studentCaller)
	defer conn.Close()

	received := make(chan dto.NotificationResponse, 8)
	go func() {
		defer close(received)
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var notification dto.NotificationResponse
			if json.Unmarshal(raw, &notification) == nil {
				received <- notification
			}
		}
	}()

	// The server subscribes asynchronously after the upgrade, so keep assigning work until the
	// stream delivers one.
	var got dto.NotificationResponse
	require.Eventually(t, func() bool {
		createAssignment(t, ta)
		select {
		case got = <-received:
			return true
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 3*time.Second, 100*time.Millisecond)

	require.Equal(t, "3", got.UserID)
	require.Equal(t, "assignment.assigned", got.Type)
	require.EqualValues(t, 1, got.SchoolID)

	require.NoError(t, conn.Close())
	_ = ta.app.ShutdownWithTimeout(time.Second)
}

func TestNotificationWebsocketSurvivesShutdown(t *testing.T) {
	ta := newTestApp(t)
	activeStreams := func() float64 {
		return testutil.ToFloat64(observability.NotificationStreamsActive())
	}
	require.Eventually(t, func() bool { return activeStreams() == 0 }, 2*time.Second, 10*time.Millisecond)

	conn := dialNotifications(t, ta.serve(t), studentCaller)
	require.Eventually(t, func() bool { return activeStreams() == 1 }, 2*time.Second, 10*time.Millisecond)

	// Hijacked connections outlive the server; the stream must not watch the recycled request.
	_ = ta.app.ShutdownWithTimeout(100 * time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool { return activeStreams() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestNotificationWebsocketRequiresUpgrade(t *testing.T) {
	ta := newTestApp(t)

	resp := ta.do(t, &studentCaller, http.MethodGet, "/api/v1/notifications/ws", nil)
	require.Equal(t, http.StatusUpgradeRequired, resp.status)

	resp = ta.do(t, nil, http.MethodGet, "/api/v1/notifications/ws", nil)
	require.Equal(t, http.StatusUnauthorized, resp.status)
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	ta := newTestApp(t)

	resp := ta.do(t, nil, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.status)
	require.Equal(t, "ok", resp.entity("health")["status"])

	resp = ta.do(t, nil, http.MethodGet, "/api/v1/health", nil)
	require.Equal(t, http.StatusOK, resp.status)

	createAssignment(t, ta)
	resp = ta.do(t, nil, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.status)
	require.Contains(t, string(resp.raw), "hifz_http_requests_total")
	require.Contains(t, string(resp.raw), "hifz_notifications_published_total")
}

func TestMetricsScrapeAfterMixedMethods(t *testing.T) {
	ta := newTestApp(t)

	id := createAssignment(t, ta)
	resp := ta.do(t, &teacherCaller, http.MethodGet, "/api/v1/assignments/"+itoa(id), nil)
	require.Equal(t, http.StatusOK, resp.status)
	resp = ta.do(t, &teacherCaller, http.MethodPatch, "/api/v1/notifications/999/read", nil)
	require.Equal(t, http.StatusNotFound, resp.status)
	resp = ta.do(t, &teacherCaller, http.MethodGet, "/api/v1/assignments", nil)
	require.Equal(t, http.StatusOK, resp.status)

	for i := 0; i < 2; i++ {
		resp = ta.do(t, nil, http.MethodGet, "/metrics", nil)
		require.Equal(t, http.StatusOK, resp.status, string(resp.raw))
		require.Contains(t, string(resp.raw), `method="POST"`)
		require.Contains(t, string(resp.raw), `method="PATCH"`)
		require.Contains(t, string(resp.raw), `route="/api/v1/assignments/:id"`)
	}
}
