package cloud

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// Realtime protocol constants (phoenix-channel framing).
const (
	realtimePath      = "/realtime/v1/websocket"
	heartbeatInterval = 30 * time.Second
	eventJoin         = "phx_join"
	eventHeartbeat    = "heartbeat"
)

// Change is a notification that a plan row changed remotely.
type Change struct {
	PlanID string
	// Type is the database event: INSERT, UPDATE, or DELETE.
	Type string
}

// phoenixMessage is the wire frame for the realtime channel.
type phoenixMessage struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     string          `json:"ref"`
}

// changePayload is the payload of a postgres_changes event.
type changePayload struct {
	Type   string `json:"type"`
	Record struct {
		PlanID string `json:"plan_id"`
	} `json:"record"`
	OldRecord struct {
		PlanID string `json:"plan_id"`
	} `json:"old_record"`
}

// Feed subscribes to remote plan-row changes over a websocket. It is a
// best-effort capability: watch mode degrades to debounced polling when
// the feed cannot connect or drops.
type Feed struct {
	baseURL string
	anonKey string
	logger  *slog.Logger
}

// NewFeed creates a realtime change feed for the given project root URL.
func NewFeed(baseURL, anonKey string, logger *slog.Logger) *Feed {
	if logger == nil {
		logger = slog.Default()
	}

	return &Feed{baseURL: baseURL, anonKey: anonKey, logger: logger}
}

// Subscribe connects and streams change notifications for the user's plan
// rows until ctx is canceled or the connection drops. The returned channel
// is closed when the subscription ends; the error reports why.
func (f *Feed) Subscribe(ctx context.Context, userID string) (<-chan Change, error) {
	wsURL := strings.Replace(f.baseURL, "http", "ws", 1) +
		realtimePath + "?apikey=" + f.anonKey + "&vsn=1.0.0"

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("cloud: dialing realtime feed: %w", err)
	}

	topic := "realtime:public:monthly_plans:user_id=eq." + userID

	join := phoenixMessage{
		Topic:   topic,
		Event:   eventJoin,
		Payload: json.RawMessage(`{}`),
		Ref:     "1",
	}
	if err := wsjson.Write(ctx, conn, join); err != nil {
		conn.Close(websocket.StatusInternalError, "join failed")
		return nil, fmt.Errorf("cloud: joining realtime topic: %w", err)
	}

	changes := make(chan Change)

	go f.heartbeatLoop(ctx, conn)
	go f.readLoop(ctx, conn, topic, changes)

	f.logger.Debug("realtime feed subscribed", "topic", topic)

	return changes, nil
}

// heartbeatLoop keeps the phoenix channel alive.
func (f *Feed) heartbeatLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	ref := 2

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			hb := phoenixMessage{
				Topic:   "phoenix",
				Event:   eventHeartbeat,
				Payload: json.RawMessage(`{}`),
				Ref:     fmt.Sprintf("%d", ref),
			}
			ref++

			if err := wsjson.Write(ctx, conn, hb); err != nil {
				f.logger.Warn("realtime heartbeat failed", "error", err)
				return
			}
		}
	}
}

// readLoop decodes inbound frames and forwards plan changes.
func (f *Feed) readLoop(ctx context.Context, conn *websocket.Conn, topic string, changes chan<- Change) {
	defer close(changes)
	defer conn.Close(websocket.StatusNormalClosure, "done")

	for {
		var msg phoenixMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			if ctx.Err() == nil {
				f.logger.Warn("realtime feed closed", "error", err)
			}

			return
		}

		if msg.Topic != topic {
			continue
		}

		var payload changePayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			f.logger.Debug("skipping undecodable realtime payload", "event", msg.Event)
			continue
		}

		planID := payload.Record.PlanID
		if planID == "" {
			planID = payload.OldRecord.PlanID
		}

		if planID == "" {
			continue
		}

		select {
		case changes <- Change{PlanID: planID, Type: payload.Type}:
		case <-ctx.Done():
			return
		}
	}
}
