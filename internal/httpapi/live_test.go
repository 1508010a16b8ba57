package httpapi_test

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/MrWong99/inkwell/internal/ideapad"
	"github.com/MrWong99/inkwell/pkg/provider/live"
)

func TestLive_StartSnapshotStop(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	var snap ideapad.Snapshot
	if status := h.get(t, "/v1/live", &snap); status != http.StatusOK || snap.State != ideapad.StateIdle {
		t.Fatalf("initial = %d %+v", status, snap)
	}

	if status := h.post(t, "/v1/live/start", "", &snap); status != http.StatusOK {
		t.Fatalf("start status = %d", status)
	}
	if snap.State != ideapad.StateActive || snap.ID == "" {
		t.Fatalf("start snapshot = %+v", snap)
	}
	id := snap.ID

	h.get(t, "/v1/live", &snap)
	if snap.ID != id || snap.State != ideapad.StateActive {
		t.Errorf("current = %+v", snap)
	}

	if status := h.post(t, "/v1/live/stop", "", &snap); status != http.StatusOK {
		t.Fatalf("stop status = %d", status)
	}
	if snap.ID != id || snap.State != ideapad.StateIdle {
		t.Errorf("stop snapshot = %+v", snap)
	}
	if h.remote.Closes() != 1 {
		t.Errorf("remote closes = %d; want 1", h.remote.Closes())
	}

	if status := h.post(t, "/v1/live/stop", "", nil); status != http.StatusConflict {
		t.Errorf("second stop status = %d; want 409", status)
	}
}

func TestLive_StartFailureInBody(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.dialer.ConnectErr = errors.New("handshake refused")

	var snap ideapad.Snapshot
	if status := h.post(t, "/v1/live/start", "", &snap); status != http.StatusOK {
		t.Fatalf("status = %d; want 200", status)
	}
	if snap.State != ideapad.StateFailed || !strings.Contains(snap.Error, "handshake refused") {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestLive_EventStream(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	var snap ideapad.Snapshot
	h.post(t, "/v1/live/start", "", &snap)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(h.srv.URL, "http")+"/v1/live/events", nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.CloseNow()

	var ev ideapad.Event
	if err := wsjson.Read(ctx, conn, &ev); err != nil {
		t.Fatalf("read hello: %v", err)
	}
	if ev.Kind != ideapad.EventState || ev.State != ideapad.StateActive || ev.Session != snap.ID {
		t.Fatalf("hello = %+v", ev)
	}

	h.remote.Emit(live.Message{InputTranscription: "an idea", OutputTranscription: "go on", TurnComplete: true})

	want := []ideapad.Entry{
		{Speaker: ideapad.SpeakerLocal, Text: "an idea"},
		{Speaker: ideapad.SpeakerRemote, Text: "go on"},
	}
	for i, w := range want {
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			t.Fatalf("read transcript %d: %v", i, err)
		}
		if ev.Kind != ideapad.EventTranscript || ev.Entry == nil || *ev.Entry != w {
			t.Errorf("event %d = %+v; want entry %+v", i, ev, w)
		}
	}

	h.post(t, "/v1/live/stop", "", nil)
	if err := wsjson.Read(ctx, conn, &ev); err != nil {
		t.Fatalf("read stop: %v", err)
	}
	if ev.Kind != ideapad.EventState || ev.State != ideapad.StateIdle {
		t.Errorf("stop event = %+v", ev)
	}
}
