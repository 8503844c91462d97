package handlers

import (
	"context"
	"encoding/json"
	"errors"

	"voicebook/models"
	"voicebook/services/call"
	"voicebook/services/dialogue"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	ws "nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

type signalMessage struct {
	Type   string           `json:"type"`
	CallID string           `json:"callId"`
	State  models.TurnState `json:"state,omitempty"`
	Reply  *dialogue.Reply  `json:"reply,omitempty"`
	Error  string           `json:"error,omitempty"`
}

// CallSignalsHandler handles GET /api/calls/:id/signals. The client streams raw
// mic, playback and active-speaker events; the server streams turn_state
// changes and the prompt of every dialogue reply. Losing the transport without
// a normal close ends the call.
func (h *CallHandler) CallSignalsHandler(c *gin.Context) {
	logger := getLogger(c)
	session, err := h.Calls.Get(c.Param("id"))
	if err != nil {
		writeDialogueError(c, err)
		return
	}

	conn, err := ws.Accept(c.Writer, c.Request, &ws.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		logger.Warn("ws accept failed", zap.Error(err))
		return
	}
	defer conn.Close(ws.StatusInternalError, "unexpected close")

	ctx, cancel := context.WithCancel(c.Request.Context())
	updates, unsubscribe := session.Arbiter().Subscribe()
	replies, removeListener := session.Replies()
	defer removeListener()
	defer unsubscribe()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.streamSignals(ctx, conn, session, updates, replies)
	}()

	var readErr error
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			readErr = err
			break
		}
		if typ != ws.MessageText {
			continue
		}
		var sig call.Signal
		if err := json.Unmarshal(data, &sig); err != nil {
			_ = wsjson.Write(ctx, conn, signalMessage{Type: "error", CallID: session.ID, Error: err.Error()})
			continue
		}
		if err := session.ApplySignal(sig); err != nil {
			_ = wsjson.Write(ctx, conn, signalMessage{Type: "error", CallID: session.ID, Error: err.Error()})
		}
	}
	cancel()
	<-writerDone

	status := ws.CloseStatus(readErr)
	logger.Debug("signal stream closed", zap.String("callId", session.ID), zap.Int("status", int(status)))
	if status != ws.StatusNormalClosure {
		if _, err := h.Calls.End(context.Background(), session.ID); err == nil {
			logger.Info("call ended by transport loss", zap.String("callId", session.ID))
		} else if !errors.Is(err, call.ErrCallNotFound) {
			logger.Warn("failed to end call after transport loss", zap.String("callId", session.ID), zap.Error(err))
		}
	}
	conn.Close(ws.StatusNormalClosure, "done")
}

// streamSignals writes the initial turn state, then every change and reply
// until ctx is done or both streams close with the call.
func (h *CallHandler) streamSignals(ctx context.Context, conn *ws.Conn, session *call.Session,
	updates <-chan models.TurnState, replies <-chan dialogue.Reply) {
	_ = wsjson.Write(ctx, conn, signalMessage{Type: "turn_state", CallID: session.ID, State: session.Turn()})
	for updates != nil || replies != nil {
		var msg signalMessage
		select {
		case <-ctx.Done():
			return
		case state, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			msg = signalMessage{Type: "turn_state", CallID: session.ID, State: state}
		case reply, ok := <-replies:
			if !ok {
				replies = nil
				continue
			}
			msg = signalMessage{Type: "prompt", CallID: session.ID, Reply: &reply}
		}
		if err := wsjson.Write(ctx, conn, msg); err != nil {
			return
		}
	}
	conn.Close(ws.StatusNormalClosure, "call ended")
}
