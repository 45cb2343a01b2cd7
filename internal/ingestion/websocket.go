package ingestion

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/polybot/internal/eventproc"
)

// WSClient is a single long-lived WebSocket connection to the venue's
// market-data feed. It retains the subscribed token-ID set across
// reconnects and normalizes every incoming frame to a RawEvent, matching
// the teacher's internal/polymarket/ws_client.go reconnect/resubscribe
// shape generalized from a binary up/down pair to an arbitrary token set.
type WSClient struct {
	url               string
	heartbeatTimeout  time.Duration
	maxReconnectDelay time.Duration

	mu          sync.Mutex
	conn        *websocket.Conn
	subscribed  map[string]struct{}
	connected   bool
	reconnects  int
	stopCh      chan struct{}
	lastMessage time.Time

	onEvent func(eventproc.RawEvent)
}

func NewWSClient(url string, heartbeatTimeout, maxReconnectDelay time.Duration) *WSClient {
	return &WSClient{
		url:               url,
		heartbeatTimeout:  heartbeatTimeout,
		maxReconnectDelay: maxReconnectDelay,
		subscribed:        make(map[string]struct{}),
		stopCh:            make(chan struct{}),
	}
}

// OnEvent registers the callback invoked for every normalized event.
func (c *WSClient) OnEvent(fn func(eventproc.RawEvent)) {
	c.onEvent = fn
}

func (c *WSClient) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked()
}

func (c *WSClient) connectLocked() error {
	if c.connected {
		return nil
	}
	conn, _, err := websocket.DefaultDialer.Dial(c.url, nil)
	if err != nil {
		return err
	}
	c.conn = conn
	c.connected = true
	c.lastMessage = time.Now()

	if err := c.resubscribeLocked(); err != nil {
		log.Warn().Err(err).Msg("📡 resubscribe after connect failed")
	}

	go c.readLoop()
	go c.heartbeatLoop()
	log.Info().Str("url", c.url).Msg("📡 connected to venue websocket")
	return nil
}

// Subscribe adds tokenID to the retained subscription set and, if
// connected, sends it immediately.
func (c *WSClient) Subscribe(tokenID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribed[tokenID] = struct{}{}
	if !c.connected {
		return nil
	}
	return c.sendSubscribeLocked([]string{tokenID})
}

func (c *WSClient) resubscribeLocked() error {
	if len(c.subscribed) == 0 {
		return nil
	}
	ids := make([]string, 0, len(c.subscribed))
	for id := range c.subscribed {
		ids = append(ids, id)
	}
	return c.sendSubscribeLocked(ids)
}

func (c *WSClient) sendSubscribeLocked(tokenIDs []string) error {
	msg := map[string]interface{}{"type": "market", "assets_ids": tokenIDs}
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, body)
}

func (c *WSClient) readLoop() {
	for {
		select {
		case <-c.stopCh:
			return
		default:
		}

		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			log.Warn().Err(err).Msg("📡 websocket read error")
			c.handleDisconnect()
			return
		}

		c.mu.Lock()
		c.lastMessage = time.Now()
		c.mu.Unlock()
		c.handleFrame(msg)
	}
}

func (c *WSClient) heartbeatLoop() {
	ticker := time.NewTicker(c.heartbeatTimeout / 2)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.mu.Lock()
			stale := c.connected && time.Since(c.lastMessage) > c.heartbeatTimeout
			c.mu.Unlock()
			if stale {
				log.Warn().Msg("📡 heartbeat timeout, forcing reconnect")
				c.handleDisconnect()
				return
			}
		}
	}
}

// handleFrame dispatches a single raw frame, which may be a single JSON
// object or a JSON array (an empty array is a subscription acknowledgment
// and is a silent no-op).
func (c *WSClient) handleFrame(data []byte) {
	var arr []json.RawMessage
	if err := json.Unmarshal(data, &arr); err == nil {
		for _, item := range arr {
			c.handleSingle(item)
		}
		return
	}
	c.handleSingle(data)
}

func (c *WSClient) handleSingle(data []byte) {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		log.Debug().Err(err).Msg("📡 unparseable websocket frame")
		return
	}
	if len(raw) == 0 {
		return
	}

	event, ok := normalizeFrame(raw)
	if !ok {
		return
	}
	if c.onEvent != nil {
		c.onEvent(event)
	}
}

// normalizeFrame implements the price-source priority and identity rules:
// price → last_trade_price → best bid; asset_id is the token_id; a message
// with only "market" and no asset_id is skipped entirely since "market" is
// the condition_id, not a token id.
func normalizeFrame(raw map[string]interface{}) (eventproc.RawEvent, bool) {
	tokenID, hasToken := firstString(raw, "asset_id")
	if !hasToken {
		return eventproc.RawEvent{}, false
	}

	price, hasPrice := decimalField(raw, "price")
	if !hasPrice {
		price, hasPrice = decimalField(raw, "last_trade_price")
	}
	if !hasPrice {
		price, hasPrice = bestBidFromBook(raw)
	}
	if !hasPrice {
		return eventproc.RawEvent{}, false
	}

	event := eventproc.RawEvent{
		Type:    toEventType(stringField(raw, "event_type")),
		TokenID: tokenID,
		Price:   price,
	}
	if conditionID, ok := firstString(raw, "market"); ok {
		event.ConditionID = conditionID
	}
	if size, ok := decimalField(raw, "size"); ok {
		event.Size = size
		event.HasSize = true
	}
	// A frame with no parseable timestamp is passed through with
	// HasTimestamp=false rather than stamped at receipt time — eventproc's
	// ExtractTrigger is the single place that decides a missing timestamp
	// makes an event untrustworthy, and must see the true absence.
	if ts, ok := parseTradeTimestamp(raw["timestamp"]); ok {
		event.Timestamp = ts
		event.HasTimestamp = true
	}
	return event, true
}

func bestBidFromBook(raw map[string]interface{}) (decimal.Decimal, bool) {
	bids, ok := raw["bids"].([]interface{})
	if !ok || len(bids) == 0 {
		return decimal.Zero, false
	}
	entry, ok := bids[0].(map[string]interface{})
	if !ok {
		return decimal.Zero, false
	}
	return decimalField(entry, "price")
}

func toEventType(s string) eventproc.EventType {
	switch eventproc.EventType(s) {
	case eventproc.EventPriceChange, eventproc.EventTrade, eventproc.EventPriceUpdate,
		eventproc.EventBook, eventproc.EventLastTradePrice, eventproc.EventHeartbeat:
		return eventproc.EventType(s)
	default:
		return eventproc.EventUnknown
	}
}

func (c *WSClient) handleDisconnect() {
	c.mu.Lock()
	c.connected = false
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.reconnects++
	attempt := c.reconnects
	c.mu.Unlock()

	delay := backoffDelay(attempt, c.maxReconnectDelay)
	log.Warn().Int("attempt", attempt).Dur("delay", delay).Msg("📡 websocket disconnected, reconnecting")

	select {
	case <-c.stopCh:
		return
	case <-time.After(delay):
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.connectLocked(); err != nil {
		log.Error().Err(err).Msg("📡 reconnect failed")
	}
}

func backoffDelay(attempt int, max time.Duration) time.Duration {
	delay := time.Second
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}

// Close stops the client permanently.
func (c *WSClient) Close() {
	close(c.stopCh)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
	}
	c.connected = false
}
