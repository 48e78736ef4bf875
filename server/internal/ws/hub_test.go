package ws_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rzadesk/rzadesk/pkg/rza"
	"github.com/rzadesk/rzadesk/server/internal/session"
	wsHub "github.com/rzadesk/rzadesk/server/internal/ws"
)

const testInterval = 20 * time.Millisecond

// --- helpers ----------------------------------------------------------------

// startHub starts a test HTTP server with the hub mounted at /ws/sessions/.
// The hub's Run loop is started with a cancellable context.
// Returns the ws:// base URL, the hub, and a cancel function.
func startHub(t *testing.T, st *session.Store, interval time.Duration) (wsBase string, hub *wsHub.Hub, cancel func()) {
	t.Helper()

	hub = wsHub.New(st, interval)
	ctx, cancelFn := context.WithCancel(context.Background())

	mux := http.NewServeMux()
	mux.Handle(wsHub.PathPrefix, hub)
	srv := httptest.NewServer(mux)
	go hub.Run(ctx)

	t.Cleanup(func() {
		cancelFn()
		srv.Close()
	})

	wsBase = "ws" + strings.TrimPrefix(srv.URL, "http") + wsHub.PathPrefix
	return wsBase, hub, cancelFn
}

// dial connects a WebSocket client to url and returns the connection.
func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readMessage reads and decodes one text message from conn with a short deadline.
func readMessage(t *testing.T, conn *websocket.Conn) wsHub.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var m wsHub.Message
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal %s: %v", raw, err)
	}
	return m
}

var mtzInput = rza.Input{"in": "100", "ks": "1.3", "t": "0.5"}

// --- tests ------------------------------------------------------------------

func TestHub_Connect_ReceivesImmediateFeed(t *testing.T) {
	st := session.New(5 * time.Minute)
	id := st.Create().ID
	st.Calculate(id, rza.KindOvercurrent, mtzInput) //nolint:errcheck
	wsBase, _, _ := startHub(t, st, time.Hour)

	m := readMessage(t, dial(t, wsBase+id))
	if m.Event != wsHub.EventFeed {
		t.Errorf("event: got %q, want feed", m.Event)
	}
	if m.Data == nil || m.Data.ID != id || m.Data.SelectedKind != "mtz" {
		t.Fatalf("data: got %+v", m.Data)
	}
	if len(m.Data.Feed) != 1 || m.Data.Feed[0].Metrics[0].Value != "130.0 A" {
		t.Errorf("feed: got %+v", m.Data.Feed)
	}
}

func TestHub_UnknownSession_Returns404(t *testing.T) {
	wsBase, _, _ := startHub(t, session.New(5*time.Minute), time.Hour)

	_, resp, err := websocket.DefaultDialer.Dial(wsBase+"nope", nil)
	if err == nil {
		t.Fatal("dial: expected error for unknown session")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Errorf("status: got %v, want 404", resp)
	}
}

func TestHub_NonWebSocketRequest_Returns400(t *testing.T) {
	st := session.New(5 * time.Minute)
	id := st.Create().ID
	hub := wsHub.New(st, testInterval)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	// Plain HTTP GET without WebSocket upgrade headers.
	resp, err := http.Get(srv.URL + wsHub.PathPrefix + id)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", resp.StatusCode)
	}
}

func TestHub_NotifyPushesChange(t *testing.T) {
	st := session.New(5 * time.Minute)
	id := st.Create().ID
	wsBase, hub, _ := startHub(t, st, time.Hour)

	conn := dial(t, wsBase+id)
	readMessage(t, conn) // consume immediate feed (empty)

	st.Select(id, rza.KindDistance) //nolint:errcheck
	hub.Notify(id)

	m := readMessage(t, conn)
	if m.Data == nil || m.Data.SelectedKind != "distance" {
		t.Errorf("after notify: got %+v", m.Data)
	}
}

func TestHub_NotifyOnlyTargetsSession(t *testing.T) {
	st := session.New(5 * time.Minute)
	a, b := st.Create().ID, st.Create().ID
	wsBase, hub, _ := startHub(t, st, time.Hour)

	connA := dial(t, wsBase+a)
	connB := dial(t, wsBase+b)
	readMessage(t, connA)
	readMessage(t, connB)

	hub.Notify(b)
	if m := readMessage(t, connB); m.Data == nil || m.Data.ID != b {
		t.Errorf("client B: got %+v", m)
	}

	connA.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, _, err := connA.ReadMessage(); err == nil {
		t.Error("client A: received a message meant for session B")
	}
}

func TestHub_ReceivesFeedOnTick(t *testing.T) {
	st := session.New(5 * time.Minute)
	id := st.Create().ID
	wsBase, _, _ := startHub(t, st, testInterval)

	conn := dial(t, wsBase+id)
	readMessage(t, conn) // consume immediate feed

	st.Calculate(id, rza.KindOvercurrent, mtzInput) //nolint:errcheck

	// The next tick re-sends the session with the new result.
	m := readMessage(t, conn)
	if m.Data == nil || len(m.Data.Feed) != 1 {
		t.Errorf("tick: got %+v", m.Data)
	}
}

func TestHub_ClosedSendsEventAndDisconnects(t *testing.T) {
	st := session.New(5 * time.Minute)
	id := st.Create().ID
	wsBase, hub, _ := startHub(t, st, time.Hour)

	conn := dial(t, wsBase+id)
	readMessage(t, conn)
	time.Sleep(10 * time.Millisecond)

	st.Delete(id)
	hub.Closed(id)

	m := readMessage(t, conn)
	if m.Event != wsHub.EventClosed || m.Data != nil {
		t.Errorf("closed: got %+v", m)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected connection close after closed event")
	}
	if n := hub.Count(); n != 0 {
		t.Errorf("Count after closed: got %d, want 0", n)
	}
}

func TestHub_TickNoticesEvictedSession(t *testing.T) {
	st := session.New(5 * time.Minute)
	id := st.Create().ID
	wsBase, _, _ := startHub(t, st, testInterval)

	conn := dial(t, wsBase+id)
	readMessage(t, conn)

	st.Delete(id) // as eviction would, without telling the hub

	for {
		m := readMessage(t, conn)
		if m.Event == wsHub.EventClosed {
			return
		}
	}
}

func TestHub_TickClosesExpiredSession(t *testing.T) {
	st := session.New(80 * time.Millisecond)
	id := st.Create().ID
	wsBase, _, _ := startHub(t, st, testInterval)

	conn := dial(t, wsBase+id)
	readMessage(t, conn)

	// No Evict call: the store alone reports the session missing once idle.
	for {
		m := readMessage(t, conn)
		if m.Event == wsHub.EventClosed {
			break
		}
	}
	if _, _, err := st.Calculate(id, rza.KindOvercurrent, mtzInput); err == nil {
		t.Error("Calculate on expired session: got nil error")
	}
}

func TestHub_CountClients(t *testing.T) {
	st := session.New(5 * time.Minute)
	id := st.Create().ID
	wsBase, hub, _ := startHub(t, st, time.Hour)

	for i := 0; i < 3; i++ {
		readMessage(t, dial(t, wsBase+id)) // consume initial message
	}

	time.Sleep(10 * time.Millisecond)
	if n := hub.Count(); n != 3 {
		t.Errorf("Count: got %d, want 3", n)
	}
}

func TestHub_CountClients_DecreasesOnDisconnect(t *testing.T) {
	st := session.New(5 * time.Minute)
	id := st.Create().ID
	wsBase, hub, _ := startHub(t, st, time.Hour)

	conn := dial(t, wsBase+id)
	readMessage(t, conn)
	time.Sleep(10 * time.Millisecond)

	if n := hub.Count(); n != 1 {
		t.Errorf("Count before disconnect: got %d, want 1", n)
	}

	conn.Close()
	time.Sleep(50 * time.Millisecond) // let readPump detect the close

	if n := hub.Count(); n != 0 {
		t.Errorf("Count after disconnect: got %d, want 0", n)
	}
}

func TestHub_CancelContextClosesConnections(t *testing.T) {
	st := session.New(5 * time.Minute)
	id := st.Create().ID
	wsBase, hub, cancel := startHub(t, st, time.Hour)

	conn := dial(t, wsBase+id)
	readMessage(t, conn)
	time.Sleep(10 * time.Millisecond)

	cancel()

	time.Sleep(50 * time.Millisecond)
	if n := hub.Count(); n != 0 {
		t.Errorf("Count after cancel: got %d, want 0", n)
	}
}
