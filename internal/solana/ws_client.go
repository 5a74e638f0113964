package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// WSConfig configures the log stream connection.
type WSConfig struct {
	ReconnectDelay    time.Duration // initial backoff between sessions
	MaxReconnectDelay time.Duration
	PingInterval      time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	SubscribeTimeout  time.Duration
}

// DefaultWSConfig returns the default stream configuration.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		SubscribeTimeout:  30 * time.Second,
	}
}

// LogStream implements WSClient over gorilla/websocket. A single
// connection multiplexes any number of log subscriptions; when the
// connection drops the stream reconnects with backoff and replays every
// active subscription on the new session.
type LogStream struct {
	endpoint string
	cfg      WSConfig
	log      zerolog.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	subs   map[int64]*logSub        // by current server subscription ID
	await  map[uint64]chan subReply // by request ID
	closed bool

	reqID atomic.Uint64
	done  chan struct{}
	wg    sync.WaitGroup
}

type logSub struct {
	filter LogsFilter
	ch     chan LogNotification
}

type subReply struct {
	subID int64
	err   error
}

var _ WSClient = (*LogStream)(nil)

// NewLogStream connects to the endpoint and starts the session loop.
func NewLogStream(ctx context.Context, endpoint string, cfg *WSConfig, log zerolog.Logger) (*LogStream, error) {
	c := cfg
	if c == nil {
		def := DefaultWSConfig()
		c = &def
	}

	s := &LogStream{
		endpoint: endpoint,
		cfg:      *c,
		log:      log.With().Str("component", "log_stream").Logger(),
		subs:     make(map[int64]*logSub),
		await:    make(map[uint64]chan subReply),
		done:     make(chan struct{}),
	}

	conn, err := s.dial(ctx)
	if err != nil {
		return nil, err
	}
	s.conn = conn

	s.wg.Add(2)
	go s.sessionLoop(conn)
	go s.pingLoop()

	return s, nil
}

func (s *LogStream) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial %s: %w", s.endpoint, err)
	}
	return conn, nil
}

// SubscribeLogs registers a log subscription. The returned channel stays
// valid across reconnects and is closed only by Close.
func (s *LogStream) SubscribeLogs(ctx context.Context, filter LogsFilter) (<-chan LogNotification, error) {
	subID, err := s.subscribe(ctx, filter)
	if err != nil {
		return nil, err
	}

	// Buffered so bursts on the wire do not stall the read loop.
	ch := make(chan LogNotification, 10000)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return nil, fmt.Errorf("log stream closed")
	}
	s.subs[subID] = &logSub{filter: filter, ch: ch}
	s.mu.Unlock()

	return ch, nil
}

// subscribe sends logsSubscribe and waits for the server-assigned ID.
func (s *LogStream) subscribe(ctx context.Context, filter LogsFilter) (int64, error) {
	reqID := s.reqID.Add(1)

	var mentions interface{} = "all"
	if len(filter.Mentions) > 0 {
		mentions = map[string]interface{}{"mentions": filter.Mentions}
	}

	req := wsRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  "logsSubscribe",
		Params: []interface{}{
			mentions,
			map[string]string{"commitment": "confirmed"},
		},
	}

	reply := make(chan subReply, 1)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, fmt.Errorf("log stream closed")
	}
	if s.conn == nil {
		s.mu.Unlock()
		return 0, fmt.Errorf("not connected")
	}
	s.await[reqID] = reply
	s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	err := s.conn.WriteJSON(req)
	s.mu.Unlock()

	if err != nil {
		s.dropAwait(reqID)
		return 0, fmt.Errorf("write subscribe: %w", err)
	}

	select {
	case r := <-reply:
		if r.err != nil {
			return 0, r.err
		}
		return r.subID, nil
	case <-time.After(s.cfg.SubscribeTimeout):
		s.dropAwait(reqID)
		return 0, fmt.Errorf("subscribe confirmation timeout after %s", s.cfg.SubscribeTimeout)
	case <-s.done:
		return 0, fmt.Errorf("log stream closed")
	case <-ctx.Done():
		s.dropAwait(reqID)
		return 0, ctx.Err()
	}
}

func (s *LogStream) dropAwait(reqID uint64) {
	s.mu.Lock()
	delete(s.await, reqID)
	s.mu.Unlock()
}

// Close shuts down the stream and closes all subscriber channels.
func (s *LogStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)

	if s.conn != nil {
		s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.conn.Close()
	}
	for id, sub := range s.subs {
		close(sub.ch)
		delete(s.subs, id)
	}
	for id, ch := range s.await {
		close(ch)
		delete(s.await, id)
	}
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

// sessionLoop reads one connection until it fails, then reconnects with
// backoff and replays the active subscriptions. Exits on Close.
func (s *LogStream) sessionLoop(conn *websocket.Conn) {
	defer s.wg.Done()

	delay := s.cfg.ReconnectDelay

	for {
		err := s.readSession(conn)
		if s.isClosed() {
			return
		}
		s.log.Warn().Err(err).Dur("retry_in", delay).Msg("websocket session ended")

		select {
		case <-s.done:
			return
		case <-time.After(delay):
		}
		delay *= 2
		if delay > s.cfg.MaxReconnectDelay {
			delay = s.cfg.MaxReconnectDelay
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		next, dialErr := s.dial(ctx)
		cancel()
		if dialErr != nil {
			s.log.Warn().Err(dialErr).Msg("websocket reconnect failed")
			conn = nil
			continue
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			next.Close()
			return
		}
		s.conn = next
		s.mu.Unlock()

		s.resubscribe()
		conn = next
		delay = s.cfg.ReconnectDelay
	}
}

// readSession consumes messages from one connection until error.
func (s *LogStream) readSession(conn *websocket.Conn) error {
	if conn == nil {
		return fmt.Errorf("no connection")
	}
	for {
		conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		s.dispatch(message)
	}
}

// resubscribe replays every active filter on the current connection and
// rebinds subscriber channels to the new server IDs.
func (s *LogStream) resubscribe() {
	s.mu.Lock()
	old := make(map[int64]*logSub, len(s.subs))
	for id, sub := range s.subs {
		old[id] = sub
	}
	s.mu.Unlock()

	for oldID, sub := range old {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		newID, err := s.subscribe(ctx, sub.filter)
		cancel()
		if err != nil {
			s.log.Error().Err(err).Int64("sub_id", oldID).Msg("resubscribe failed")
			continue
		}

		s.mu.Lock()
		delete(s.subs, oldID)
		s.subs[newID] = sub
		s.mu.Unlock()
	}
}

// dispatch routes one inbound frame.
func (s *LogStream) dispatch(message []byte) {
	var frame struct {
		ID     uint64          `json:"id"`
		Method string          `json:"method"`
		Result json.RawMessage `json:"result"`
		Params *wsLogsParams   `json:"params"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(message, &frame); err != nil {
		s.log.Warn().Err(err).Msg("undecodable websocket frame")
		return
	}

	switch {
	case frame.Method == "logsNotification" && frame.Params != nil:
		s.deliver(frame.Params)
	case frame.ID != 0:
		reply := subReply{}
		if frame.Error != nil {
			reply.err = fmt.Errorf("subscribe rejected: code=%d %s", frame.Error.Code, frame.Error.Message)
		} else if err := json.Unmarshal(frame.Result, &reply.subID); err != nil {
			reply.err = fmt.Errorf("%w: subscription id: %v", ErrMalformedResponse, err)
		}

		s.mu.Lock()
		ch, ok := s.await[frame.ID]
		delete(s.await, frame.ID)
		s.mu.Unlock()
		if ok {
			ch <- reply
		}
	}
}

func (s *LogStream) deliver(params *wsLogsParams) {
	s.mu.Lock()
	sub, ok := s.subs[params.Subscription]
	s.mu.Unlock()
	if !ok {
		return
	}

	notif := LogNotification{
		Signature: params.Result.Value.Signature,
		Logs:      params.Result.Value.Logs,
		Err:       params.Result.Value.Err,
	}
	if params.Result.Context != nil {
		notif.Slot = params.Result.Context.Slot
	}

	// Blocking send, the buffer absorbs bursts and nothing is dropped.
	select {
	case sub.ch <- notif:
	case <-s.done:
	}
}

// pingLoop keeps the connection alive.
func (s *LogStream) pingLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.mu.Lock()
			if s.conn != nil {
				s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
				if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					// The read loop notices the dead connection.
					s.log.Debug().Err(err).Msg("ping failed")
				}
			}
			s.mu.Unlock()
		}
	}
}

func (s *LogStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type wsLogsParams struct {
	Subscription int64 `json:"subscription"`
	Result       struct {
		Context *struct {
			Slot int64 `json:"slot"`
		} `json:"context"`
		Value struct {
			Signature string      `json:"signature"`
			Logs      []string    `json:"logs"`
			Err       interface{} `json:"err"`
		} `json:"value"`
	} `json:"result"`
}
