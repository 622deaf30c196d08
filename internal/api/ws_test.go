// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/arlpanel/internal/panel"
)

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func readEvent(t *testing.T, conn *websocket.Conn) panel.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var ev panel.Event
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestHub_PushesStateEvents(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	env := newTestEnv(t, Config{})
	ts := httptest.NewServer(env.srv.Handler())
	defer ts.Close()

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	ev := readEvent(t, conn)
	assert.Equal(t, "state", ev.Type)
	assert.True(t, ev.State.Layout[panel.SlotEnv].Placeholder)
	assert.Equal(t, 1, env.srv.Hub().Clients())

	env.sess.RunSimulation(context.Background())
	ev = readEvent(t, conn)
	assert.Equal(t, "state", ev.Type)
	assert.False(t, ev.State.Layout[panel.SlotEnv].Placeholder)
	assert.Equal(t, "arlpy env", ev.State.Layout[panel.SlotEnv].Title)
	require.NotNil(t, ev.State.LastRun)

	require.NoError(t, env.sess.SwitchTheme(context.Background(), "contrast"))
	ev = readEvent(t, conn)
	assert.Equal(t, "contrast", ev.State.Theme)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, env.srv.Close(ctx))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err = conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.True(t, errors.As(err, &closeErr), "got %v", err)
	assert.Equal(t, websocket.CloseGoingAway, closeErr.Code)
	assert.Equal(t, 0, env.srv.Hub().Clients())
}

func TestHub_RejectsAfterClose(t *testing.T) {
	env := newTestEnv(t, Config{})
	ts := httptest.NewServer(env.srv.Handler())
	defer ts.Close()

	require.NoError(t, env.srv.Close(context.Background()))

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHub_OriginCheck(t *testing.T) {
	env := newTestEnv(t, Config{AllowedOrigins: []string{"http://panel.example"}})
	ts := httptest.NewServer(env.srv.Handler())
	defer ts.Close()

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts), http.Header{"Origin": {"http://evil.example"}})
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), http.Header{"Origin": {"http://panel.example"}})
	require.NoError(t, err)
	_ = readEvent(t, conn)
	_ = conn.Close()

	conn, _, err = websocket.DefaultDialer.Dial(wsURL(ts), http.Header{"Origin": {ts.URL}})
	require.NoError(t, err)
	_ = readEvent(t, conn)
	_ = conn.Close()
}

func TestOriginChecker(t *testing.T) {
	check := originChecker(nil)
	req := httptest.NewRequest(http.MethodGet, "http://panel.local:5006/ws", nil)
	assert.True(t, check(req))

	req.Header.Set("Origin", "http://panel.local:5006")
	assert.True(t, check(req))

	req.Header.Set("Origin", "http://other.local")
	assert.False(t, check(req))

	assert.True(t, originChecker([]string{"*"})(req))
}
