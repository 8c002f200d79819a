package api

import (
	"context"
	"net/http"

	"github.com/coder/websocket"
	"github.com/segmentio/encoding/json"
	"go.uber.org/zap"

	"marcel.works/classpoll-go/app/model"
)

// wsCommand is what connected clients send upstream: identity declarations
// and room membership changes. Everything else flows downstream as events.
type wsCommand struct {
	Cmd    string `json:"cmd"`
	PollID string `json:"pollId"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}

const (
	cmdIdentify  = "IDENTIFY"
	cmdJoinPoll  = "JOIN_POLL"
	cmdLeavePoll = "LEAVE_POLL"
)

// ServeWS handles GET /ws. Query params name and role seed the session
// identity; the client can re-declare via IDENTIFY.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.Log.Warn("websocket accept failed", zap.Error(err))
		return
	}

	name := r.URL.Query().Get("name")
	role := r.URL.Query().Get("role")
	if role == "" {
		role = model.RoleStudent
	}
	sess := h.Sessions.Register(name, role)

	ctx := r.Context()
	go h.writePump(ctx, conn, sess.Messages())

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 {
				h.Log.Debug("websocket read ended", zap.String("sessionId", sess.ID), zap.Error(err))
			}
			break
		}
		var cmd wsCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			h.Log.Warn("bad websocket command", zap.String("sessionId", sess.ID), zap.Error(err))
			continue
		}
		switch cmd.Cmd {
		case cmdIdentify:
			h.Sessions.Identify(sess.ID, cmd.Name, cmd.Role)
		case cmdJoinPoll:
			h.Sessions.Join(sess.ID, cmd.PollID)
		case cmdLeavePoll:
			h.Sessions.Leave(sess.ID)
		default:
			h.Log.Warn("unknown websocket command", zap.String("cmd", cmd.Cmd))
		}
	}

	h.Sessions.Unregister(sess.ID)
	conn.Close(websocket.StatusNormalClosure, "")
}

func (h *Handler) writePump(ctx context.Context, conn *websocket.Conn, messages <-chan []byte) {
	for msg := range messages {
		if err := conn.Write(ctx, websocket.MessageText, msg); err != nil {
			h.Log.Debug("websocket write failed", zap.Error(err))
			return
		}
	}
}
