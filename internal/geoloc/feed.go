package geoloc

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/evermore-parks/parknav/pkg/util"
)

// Config holds the location feed connection settings.
type Config struct {
	FeedURL            string `yaml:"feed_url" validate:"required"`
	EnableHighAccuracy bool   `yaml:"enable_high_accuracy"`
	TimeoutMS          int    `yaml:"timeout_ms" validate:"gte=0"`
	MaxAgeMS           int    `yaml:"max_age_ms" validate:"gte=0"`
}

// DefaultWatchOptions are the bounds applied when a watch request leaves
// them unset: high accuracy, 10 s fix timeout, 2 s staleness cap.
func DefaultWatchOptions() WatchOptions {
	return WatchOptions{EnableHighAccuracy: true, TimeoutMS: 10000, MaxAgeMS: 2000}
}

var (
	requestCounter atomic.Int64
	handleCounter  atomic.Int64
)

type watchRequest struct {
	RequestID int64        `json:"req_id"`
	Type      string       `json:"type"`
	Params    WatchOptions `json:"params"`
}

type feedMessage struct {
	RequestID int64           `json:"req_id"`
	Type      string          `json:"type"`
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
}

type watch struct {
	opts     WatchOptions
	onFix    func(Fix)
	onError  func(error)
	watchdog *time.Timer
}

// FeedClient subscribes to a WebSocket position feed and fans fixes out to
// registered watches. The connection is dialed lazily on the first Watch and
// closed when the last watch is cleared.
type FeedClient struct {
	cfg Config

	mu      sync.Mutex
	conn    *websocket.Conn
	watches map[WatchHandle]*watch
}

func NewFeedClient(cfg Config) *FeedClient {
	return &FeedClient{
		cfg:     cfg,
		watches: make(map[WatchHandle]*watch),
	}
}

// Watch registers a fix callback. The feed connection is established on the
// first watch; later watches share it.
func (fc *FeedClient) Watch(opts WatchOptions, onFix func(Fix), onError func(error)) (WatchHandle, error) {
	if opts.TimeoutMS <= 0 {
		opts.TimeoutMS = DefaultWatchOptions().TimeoutMS
	}
	if opts.MaxAgeMS <= 0 {
		opts.MaxAgeMS = DefaultWatchOptions().MaxAgeMS
	}

	fc.mu.Lock()
	defer fc.mu.Unlock()

	if fc.conn == nil {
		conn, _, err := websocket.DefaultDialer.Dial(fc.cfg.FeedURL, nil)
		if err != nil {
			return 0, fmt.Errorf("error connecting to location feed %s: %w", fc.cfg.FeedURL, err)
		}
		fc.conn = conn
		go fc.readLoop(conn)
	}

	handle := WatchHandle(handleCounter.Add(1))
	w := &watch{opts: opts, onFix: onFix, onError: onError}
	w.watchdog = time.AfterFunc(time.Duration(opts.TimeoutMS)*time.Millisecond, func() {
		if onError != nil {
			onError(ErrWatchTimeout)
		}
	})
	fc.watches[handle] = w

	req := watchRequest{
		RequestID: requestCounter.Add(1),
		Type:      "watch_position",
		Params:    opts,
	}
	if err := util.SendJSON(fc.conn, req); err != nil {
		w.watchdog.Stop()
		delete(fc.watches, handle)
		fc.closeIfIdleLocked()
		return 0, fmt.Errorf("error sending watch request: %w", err)
	}

	log.Printf("geoloc: watch %d registered (timeout %dms, max age %dms)", handle, opts.TimeoutMS, opts.MaxAgeMS)
	return handle, nil
}

// Clear cancels a watch. Unknown or already-cleared handles are a no-op.
func (fc *FeedClient) Clear(handle WatchHandle) {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	w, exists := fc.watches[handle]
	if !exists {
		return
	}
	w.watchdog.Stop()
	delete(fc.watches, handle)
	log.Printf("geoloc: watch %d cleared", handle)
	fc.closeIfIdleLocked()
}

// closeIfIdleLocked closes the feed connection once no watches remain.
// Callers must hold fc.mu.
func (fc *FeedClient) closeIfIdleLocked() {
	if len(fc.watches) == 0 && fc.conn != nil {
		fc.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		fc.conn.Close()
		fc.conn = nil
	}
}

func (fc *FeedClient) readLoop(conn *websocket.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			fc.handleDisconnect(conn, err)
			return
		}
		fc.processMessage(message)
	}
}

func (fc *FeedClient) processMessage(message []byte) {
	var msg feedMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		log.Printf("geoloc: error unmarshaling feed message: %v. Raw: %s", err, string(message))
		return
	}

	switch msg.Type {
	case "position_update":
		var fix Fix
		if err := json.Unmarshal(msg.Data, &fix); err != nil {
			log.Printf("geoloc: error unmarshaling position update: %v", err)
			return
		}
		fc.dispatchFix(fix)
	case "result":
		if !msg.Success {
			log.Printf("geoloc: feed rejected request %d", msg.RequestID)
		}
	default:
		log.Printf("geoloc: unknown feed message type %q", msg.Type)
	}
}

func (fc *FeedClient) dispatchFix(fix Fix) {
	now := time.Now()

	fc.mu.Lock()
	targets := make([]*watch, 0, len(fc.watches))
	for _, w := range fc.watches {
		// staleness cap: a fix older than maxAge never reaches the caller
		if age := now.Sub(fix.ObservedAt()); age > time.Duration(w.opts.MaxAgeMS)*time.Millisecond {
			continue
		}
		w.watchdog.Reset(time.Duration(w.opts.TimeoutMS) * time.Millisecond)
		targets = append(targets, w)
	}
	fc.mu.Unlock()

	for _, w := range targets {
		w.onFix(fix)
	}
}

func (fc *FeedClient) handleDisconnect(conn *websocket.Conn, err error) {
	fc.mu.Lock()
	// A deliberate Clear already swapped the connection out; nothing to report.
	deliberate := fc.conn != conn
	targets := make([]*watch, 0, len(fc.watches))
	if !deliberate {
		for _, w := range fc.watches {
			targets = append(targets, w)
		}
		fc.conn = nil
	}
	fc.mu.Unlock()

	if deliberate || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return
	}
	log.Printf("geoloc: feed read error: %v", err)
	for _, w := range targets {
		if w.onError != nil {
			w.onError(fmt.Errorf("location feed disconnected: %w", err))
		}
	}
}
