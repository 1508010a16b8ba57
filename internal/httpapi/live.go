package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/MrWong99/inkwell/internal/ideapad"
)

const eventWriteTimeout = 5 * time.Second

// idleSnapshot is reported while no session exists.
func idleSnapshot() ideapad.Snapshot {
	return ideapad.Snapshot{State: ideapad.StateIdle, Transcript: []ideapad.Entry{}}
}

// handleLiveStart supersedes any running session with a new one. A failed
// connect is reported through the snapshot's state and error fields.
func (s *Server) handleLiveStart(w http.ResponseWriter, r *http.Request) {
	sess, err := s.cfg.IdeaPad.Start(r.Context())
	if err != nil {
		slog.WarnContext(r.Context(), "live session failed to start", "session_id", sess.ID(), "err", err)
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleLiveStop(w http.ResponseWriter, r *http.Request) {
	cur := s.cfg.IdeaPad.Current()
	if err := s.cfg.IdeaPad.Stop(); err != nil {
		if errors.Is(err, ideapad.ErrNoSession) {
			writeError(w, http.StatusConflict, "no live session is running")
			return
		}
		slog.WarnContext(r.Context(), "live session stop", "err", err)
	}
	if cur == nil {
		writeJSON(w, http.StatusOK, idleSnapshot())
		return
	}
	writeJSON(w, http.StatusOK, cur.Snapshot())
}

func (s *Server) handleLiveSnapshot(w http.ResponseWriter, _ *http.Request) {
	cur := s.cfg.IdeaPad.Current()
	if cur == nil {
		writeJSON(w, http.StatusOK, idleSnapshot())
		return
	}
	writeJSON(w, http.StatusOK, cur.Snapshot())
}

// handleLiveEvents streams idea pad events to a WebSocket client. Events
// that arrive while the client's queue is full are dropped.
func (s *Server) handleLiveEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.WarnContext(r.Context(), "live events: accept", "err", err)
		return
	}
	defer conn.CloseNow()

	events := make(chan ideapad.Event, s.cfg.EventBuffer)
	unsubscribe := s.cfg.IdeaPad.Subscribe(func(ev ideapad.Event) {
		select {
		case events <- ev:
		default:
			slog.Debug("live events: client queue full, dropping event", "kind", ev.Kind, "session_id", ev.Session)
		}
	})
	defer unsubscribe()

	// The client never sends; CloseRead handles control frames and cancels
	// ctx once the peer goes away.
	ctx := conn.CloseRead(r.Context())

	if cur := s.cfg.IdeaPad.Current(); cur != nil {
		snap := cur.Snapshot()
		hello := ideapad.Event{Kind: ideapad.EventState, Session: snap.ID, State: snap.State, Error: snap.Error}
		if err := writeEvent(ctx, conn, hello); err != nil {
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			if err := writeEvent(ctx, conn, ev); err != nil {
				slog.Debug("live events: write failed", "err", err)
				return
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, ev ideapad.Event) error {
	ctx, cancel := context.WithTimeout(ctx, eventWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, ev)
}
