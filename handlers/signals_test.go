package handlers

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"voicebook/models"
	"voicebook/services/call"
	"voicebook/services/dialogue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ws "nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

func TestSignalsStreamTurnStateAndPrompts(t *testing.T) {
	f := newFixture(t, nil)
	f.router.GET("/api/calls/:id/signals", NewCallHandler(f.calls, nil).CallSignalsHandler)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	s, _, err := f.calls.Start(context.Background(), call.StartOptions{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/calls/" + s.ID + "/signals"
	conn, _, err := ws.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(ws.StatusNormalClosure, "")

	read := func() signalMessage {
		t.Helper()
		var msg signalMessage
		require.NoError(t, wsjson.Read(ctx, conn, &msg))
		return msg
	}

	first := read()
	assert.Equal(t, "turn_state", first.Type)
	assert.Equal(t, models.TurnIdle, first.State)

	require.NoError(t, wsjson.Write(ctx, conn, call.Signal{Type: call.SignalPlayback, Playing: true}))
	msg := read()
	assert.Equal(t, models.TurnAgentSpeaking, msg.State)

	require.NoError(t, wsjson.Write(ctx, conn, call.Signal{Type: "volume"}))
	assert.Equal(t, "error", read().Type)

	require.NoError(t, wsjson.Write(ctx, conn, call.Signal{Type: call.SignalPlayback, Playing: false}))
	assert.Equal(t, models.TurnIdle, read().State)

	_, err = f.calls.Turn(ctx, s.ID, dialogue.Utterance{Text: "une consultation"})
	require.NoError(t, err)
	prompt := read()
	assert.Equal(t, "prompt", prompt.Type)
	require.NotNil(t, prompt.Reply)
	assert.Equal(t, models.StateCollectingDate, prompt.Reply.State)

	_, err = f.calls.End(ctx, s.ID)
	require.NoError(t, err)
	_, _, err = conn.Read(ctx)
	assert.Equal(t, ws.StatusNormalClosure, ws.CloseStatus(err))
}

func dialSignals(t *testing.T, ctx context.Context, srv *httptest.Server, id string) *ws.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/calls/" + id + "/signals"
	conn, _, err := ws.Dial(ctx, url, nil)
	require.NoError(t, err)
	var first signalMessage
	require.NoError(t, wsjson.Read(ctx, conn, &first))
	require.Equal(t, "turn_state", first.Type)
	return conn
}

func TestSignalsTransportLossAbortsCall(t *testing.T) {
	f := newFixture(t, nil)
	f.router.GET("/api/calls/:id/signals", NewCallHandler(f.calls, nil).CallSignalsHandler)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for i := 0; i < 5; i++ {
		s, _, err := f.calls.Start(ctx, call.StartOptions{})
		require.NoError(t, err)
		conn := dialSignals(t, ctx, srv, s.ID)
		conn.Close(ws.StatusGoingAway, "network lost")

		require.Eventually(t, func() bool {
			_, err := f.calls.Get(s.ID)
			return errors.Is(err, call.ErrCallNotFound)
		}, 2*time.Second, 5*time.Millisecond)
		assert.Equal(t, models.StateAborted, s.Machine().State())
	}
	assert.Equal(t, 0, f.calls.Active())
}

func TestSignalsNormalCloseKeepsCall(t *testing.T) {
	f := newFixture(t, nil)
	f.router.GET("/api/calls/:id/signals", NewCallHandler(f.calls, nil).CallSignalsHandler)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s, _, err := f.calls.Start(ctx, call.StartOptions{})
	require.NoError(t, err)

	conn := dialSignals(t, ctx, srv, s.ID)
	require.NoError(t, conn.Close(ws.StatusNormalClosure, "switching device"))
	time.Sleep(50 * time.Millisecond)

	_, err = f.calls.Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateCollectingServiceType, s.Machine().State())

	again := dialSignals(t, ctx, srv, s.ID)
	defer again.Close(ws.StatusNormalClosure, "")
	require.NoError(t, wsjson.Write(ctx, again, call.Signal{Type: call.SignalPlayback, Playing: true}))
	var msg signalMessage
	require.NoError(t, wsjson.Read(ctx, again, &msg))
	assert.Equal(t, models.TurnAgentSpeaking, msg.State)
}
