package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/Pratham-creator-tech/vitality-live-sessions/internal/app"
	"github.com/Pratham-creator-tech/vitality-live-sessions/internal/config"
	"github.com/Pratham-creator-tech/vitality-live-sessions/internal/core"
)

// newTestServer stands up the controller behind a real websocket
// endpoint. The participant identity comes from the token query param,
// standing in for the client-token cookie the router middleware issues.
func newTestServer(t *testing.T) (*httptest.Server, *app.Coordinator) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		ReadLimit:  32768,
		PingPeriod: time.Second,
	}
	coord := app.NewCoordinator(core.NewRegistry(core.Options{}), 0)
	ctl := NewController(coord, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		c.Set("client_token", c.Query("token"))
		ctl.HandleSession(ctx, c)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return srv, coord
}

func dialParticipant(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil discards messages until one with the given type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, msgType string) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var m map[string]any
		require.NoError(t, conn.ReadJSON(&m))
		if m["type"] == msgType {
			return m
		}
	}
}

func stateRoster(t *testing.T, m map[string]any) []string {
	t.Helper()
	snap, ok := m["snapshot"].(map[string]any)
	require.True(t, ok, "session_state carries a snapshot")
	raw, _ := snap["participants"].([]any)
	ids := make([]string, 0, len(raw))
	for _, p := range raw {
		ids = append(ids, p.(map[string]any)["id"].(string))
	}
	return ids
}

// readUntilRoster reads session_state messages until the roster matches.
func readUntilRoster(t *testing.T, conn *websocket.Conn, want ...string) map[string]any {
	t.Helper()
	for {
		m := readUntil(t, conn, "session_state")
		got := stateRoster(t, m)
		if len(got) != len(want) {
			continue
		}
		require.ElementsMatch(t, want, got)
		return m
	}
}

func TestController_JoinStreamsState(t *testing.T) {
	srv, _ := newTestServer(t)

	alice := dialParticipant(t, srv, "alice")
	require.NoError(t, alice.WriteJSON(joinPayload{Type: "join", Session: "clinic-1", Name: "Alice"}))

	m := readUntilRoster(t, alice, "alice")
	snap := m["snapshot"].(map[string]any)
	require.Equal(t, "alice", snap["host_id"], "first joiner takes the host seat")

	bob := dialParticipant(t, srv, "bob")
	require.NoError(t, bob.WriteJSON(joinPayload{Type: "join", Session: "clinic-1", Name: "Bob"}))

	readUntilRoster(t, bob, "alice", "bob")
	readUntilRoster(t, alice, "alice", "bob")
}

func TestController_AdmissionApproveFlow(t *testing.T) {
	srv, _ := newTestServer(t)

	carol := dialParticipant(t, srv, "carol")
	require.NoError(t, carol.WriteJSON(joinPayload{
		Type: "join", Session: "clinic-2", Name: "Carol",
		AsHost: true, RequiresApproval: true,
	}))
	readUntilRoster(t, carol, "carol")

	dave := dialParticipant(t, srv, "dave")
	require.NoError(t, dave.WriteJSON(joinPayload{Type: "join", Session: "clinic-2", Name: "Dave"}))

	pending := readUntil(t, dave, "admission_pending")
	reqID, _ := pending["request"].(string)
	require.NotEmpty(t, reqID)

	require.NoError(t, carol.WriteJSON(resolvePayload{
		Type: "resolve", Request: reqID, Decision: "approved",
	}))

	result := readUntil(t, dave, "admission_result")
	require.Equal(t, "approved", result["decision"])
	readUntilRoster(t, dave, "carol", "dave")
	readUntilRoster(t, carol, "carol", "dave")
}

func TestController_AdmissionDenied(t *testing.T) {
	srv, coord := newTestServer(t)

	carol := dialParticipant(t, srv, "carol")
	require.NoError(t, carol.WriteJSON(joinPayload{
		Type: "join", Session: "clinic-3", Name: "Carol",
		AsHost: true, RequiresApproval: true,
	}))
	readUntilRoster(t, carol, "carol")

	dave := dialParticipant(t, srv, "dave")
	require.NoError(t, dave.WriteJSON(joinPayload{Type: "join", Session: "clinic-3", Name: "Dave"}))
	pending := readUntil(t, dave, "admission_pending")
	reqID := pending["request"].(string)

	require.NoError(t, carol.WriteJSON(resolvePayload{
		Type: "resolve", Request: reqID, Decision: "denied",
	}))

	result := readUntil(t, dave, "admission_result")
	require.Equal(t, "denied", result["decision"])

	snap, err := coord.Snapshot("clinic-3")
	require.NoError(t, err)
	require.Len(t, snap.Participants, 1)
	require.Empty(t, snap.Pending)
}

func TestController_DisconnectWithdrawsPendingRequest(t *testing.T) {
	srv, coord := newTestServer(t)

	carol := dialParticipant(t, srv, "carol")
	require.NoError(t, carol.WriteJSON(joinPayload{
		Type: "join", Session: "clinic-4", Name: "Carol",
		AsHost: true, RequiresApproval: true,
	}))
	readUntilRoster(t, carol, "carol")

	dave := dialParticipant(t, srv, "dave")
	require.NoError(t, dave.WriteJSON(joinPayload{Type: "join", Session: "clinic-4", Name: "Dave"}))
	readUntil(t, dave, "admission_pending")

	require.NoError(t, dave.Close())

	require.Eventually(t, func() bool {
		snap, err := coord.Snapshot("clinic-4")
		return err == nil && len(snap.Pending) == 0
	}, 2*time.Second, 10*time.Millisecond, "dropped requester's pending request is withdrawn")
}

func TestController_DisconnectLeavesRoster(t *testing.T) {
	srv, coord := newTestServer(t)

	alice := dialParticipant(t, srv, "alice")
	require.NoError(t, alice.WriteJSON(joinPayload{Type: "join", Session: "clinic-5", Name: "Alice"}))
	readUntilRoster(t, alice, "alice")

	bob := dialParticipant(t, srv, "bob")
	require.NoError(t, bob.WriteJSON(joinPayload{Type: "join", Session: "clinic-5", Name: "Bob"}))
	readUntilRoster(t, bob, "alice", "bob")

	require.NoError(t, bob.Close())

	require.Eventually(t, func() bool {
		snap, err := coord.Snapshot("clinic-5")
		if err != nil || len(snap.Participants) != 1 {
			return false
		}
		return string(snap.Participants[0].ID) == "alice"
	}, 2*time.Second, 10*time.Millisecond, "dropped connection counts as a leave")

	readUntilRoster(t, alice, "alice")
}

func TestController_WhoAmI(t *testing.T) {
	srv, _ := newTestServer(t)

	alice := dialParticipant(t, srv, "alice")
	require.NoError(t, alice.WriteJSON(joinPayload{Type: "join", Session: "clinic-6", Name: "Alice"}))
	readUntilRoster(t, alice, "alice")

	require.NoError(t, alice.WriteJSON(map[string]string{"type": "whoami"}))
	m := readUntil(t, alice, "whoami")
	require.Equal(t, "alice", m["participant"])
	require.Equal(t, "clinic-6", m["session"])
}
