package streaming

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appguard-lab/internal/domain/models"
	"appguard-lab/pkg/logger"
)

func progressFor(scanID uuid.UUID, device string, index int) *ScanEvent {
	return NewProgressEvent(device, models.NewScanProgress(scanID, index, 4, "app"))
}

func completedFor(scanID uuid.UUID, device string) *ScanEvent {
	return NewCompletedEvent(&models.ScanSummary{ScanID: scanID, DeviceID: device, Status: models.ScanStatusCompleted})
}

func TestScanEventSubject(t *testing.T) {
	id := uuid.New()
	assert.Equal(t, "scans.progress.pixel-7", progressFor(id, "pixel-7", 1).Subject())
	assert.Equal(t, "scans.completed.my_phone_v2", completedFor(id, "my phone.v2").Subject())
	assert.Equal(t, "scans.progress.unknown", progressFor(id, "", 1).Subject())
	assert.Equal(t, "scans.progress.a_b_", progressFor(id, "a*b>", 1).Subject())
}

func TestSubscriptionMatches(t *testing.T) {
	id := uuid.New()
	ev := progressFor(id, "pixel-7", 1)

	tests := []struct {
		name string
		sub  *Subscription
		want bool
	}{
		{"nil matches all", nil, true},
		{"empty matches all", &Subscription{}, true},
		{"same scan", &Subscription{ScanID: id.String()}, true},
		{"other scan", &Subscription{ScanID: uuid.NewString()}, false},
		{"same device", &Subscription{DeviceID: "pixel-7"}, true},
		{"other device", &Subscription{DeviceID: "galaxy"}, false},
		{"type filter hit", &Subscription{Types: []EventType{EventTypeScanProgress}}, true},
		{"type filter miss", &Subscription{Types: []EventType{EventTypeScanCompleted}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.sub.Matches(ev))
		})
	}

	assert.Equal(t, "scans.>", (*Subscription)(nil).subject())
	assert.Equal(t, "scans.*.pixel-7", (&Subscription{DeviceID: "pixel-7"}).subject())
}

func TestEventBus(t *testing.T) {
	bus := NewEventBus(nil, logger.NewNop())
	id := uuid.New()

	all, unsubAll := bus.Subscribe(nil)
	mine, unsubMine := bus.Subscribe(&Subscription{ScanID: id.String()})
	assert.Equal(t, 2, bus.SubscriberCount())

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, progressFor(uuid.New(), "other", 1)))
	require.NoError(t, bus.Publish(ctx, progressFor(id, "pixel-7", 1)))

	assert.Len(t, all, 2)
	require.Len(t, mine, 1)
	got := <-mine
	assert.Equal(t, id.String(), got.ScanID)

	unsubMine()
	unsubMine()
	_, open := <-mine
	assert.False(t, open)
	assert.Equal(t, 1, bus.SubscriberCount())

	bus.Close()
	for range all {
	}
	unsubAll()
	assert.Zero(t, bus.SubscriberCount())

	late, _ := bus.Subscribe(nil)
	_, open = <-late
	assert.False(t, open)
}

func TestEventBusPublisher(t *testing.T) {
	bus := NewEventBus(nil, logger.NewNop())
	events, unsubscribe := bus.Subscribe(nil)
	defer unsubscribe()

	pub := NewEventBusPublisher(bus)
	id := uuid.New()
	ctx := context.Background()

	require.NoError(t, pub.PublishScanProgress(ctx, "pixel-7", models.NewScanProgress(id, 1, 2, "Maps")))
	require.NoError(t, pub.PublishScanCompleted(ctx, &models.ScanSummary{ScanID: id, DeviceID: "pixel-7"}))

	first := <-events
	assert.Equal(t, EventTypeScanProgress, first.Type)
	assert.Equal(t, "pixel-7", first.DeviceID)
	require.NotNil(t, first.Progress)
	assert.Equal(t, 50, first.Progress.Percent)

	second := <-events
	assert.True(t, second.IsFinal())
	assert.Equal(t, id.String(), second.ScanID)
}

type wsFixture struct {
	bus *EventBus
	hub *WebSocketHub
	srv *httptest.Server
}

func newWSFixture(t *testing.T, sub *Subscription, replay func() []*ScanEvent) *wsFixture {
	t.Helper()
	bus := NewEventBus(nil, logger.NewNop())
	hub := NewWebSocketHub(bus, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	require.Eventually(t, func() bool { return bus.SubscriberCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWebSocket(w, r, sub, replay)
	}))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return &wsFixture{bus: bus, hub: hub, srv: srv}
}

func (f *wsFixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) *ScanEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev ScanEvent
	require.NoError(t, json.Unmarshal(data, &ev))
	return &ev
}

func TestWebSocketHubStreamsOneScan(t *testing.T) {
	id := uuid.New()
	f := newWSFixture(t, &Subscription{ScanID: id.String()}, nil)
	conn := f.dial(t)
	require.Eventually(t, func() bool { return f.hub.ClientCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	ctx := context.Background()
	require.NoError(t, f.bus.Publish(ctx, progressFor(uuid.New(), "other", 1)))
	require.NoError(t, f.bus.Publish(ctx, progressFor(id, "pixel-7", 1)))
	require.NoError(t, f.bus.Publish(ctx, completedFor(id, "pixel-7")))

	first := readEvent(t, conn)
	assert.Equal(t, EventTypeScanProgress, first.Type)
	assert.Equal(t, id.String(), first.ScanID)

	second := readEvent(t, conn)
	assert.Equal(t, EventTypeScanCompleted, second.Type)
	require.NotNil(t, second.Summary)
	assert.Equal(t, models.ScanStatusCompleted, second.Summary.Status)

	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
	assert.Eventually(t, func() bool { return f.hub.ClientCount() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestWebSocketHubReplaysFinishedScan(t *testing.T) {
	id := uuid.New()
	replay := func() []*ScanEvent { return []*ScanEvent{completedFor(id, "pixel-7")} }
	f := newWSFixture(t, &Subscription{ScanID: id.String()}, replay)
	conn := f.dial(t)

	ev := readEvent(t, conn)
	assert.True(t, ev.IsFinal())

	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}
