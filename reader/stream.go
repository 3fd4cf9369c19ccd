package reader

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	appconfig "signalflow/config"
	"signalflow/internal/channel"
	"signalflow/logger"
	"signalflow/models"

	"github.com/gorilla/websocket"
)

// outbound command names understood by the signal server.
const (
	cmdStartStreaming    = "start_streaming"
	cmdStopStreaming     = "stop_streaming"
	cmdRequestState      = "request_state"
	cmdRequestRecalc     = "request_recalculation"
	cmdSetUpdateInterval = "set_update_interval"
)

// StreamReader maintains the websocket connection to the signal server,
// decodes incoming frames and forwards them into the frame channel. A
// dropped connection is re-established automatically after a fixed delay
// until the context is cancelled or the attempt cap is exhausted.
type StreamReader struct {
	config   *appconfig.Config
	channels *channel.Channels
	ctx      context.Context
	wg       *sync.WaitGroup
	mu       sync.RWMutex
	running  bool
	log      *logger.Log

	conn    *websocket.Conn
	writeMu sync.Mutex

	state       atomic.Value // models.ConnectionState
	streaming   atomic.Bool
	lastUpdate  atomic.Int64 // unix nanos
	updateCount atomic.Int64
	reconnects  atomic.Int64
}

func NewStreamReader(cfg *appconfig.Config, ch *channel.Channels) *StreamReader {
	r := &StreamReader{
		config:   cfg,
		channels: ch,
		wg:       &sync.WaitGroup{},
		log:      logger.GetLogger(),
	}
	r.state.Store(models.StateDisconnected)
	return r
}

// Start launches the stream worker. It fails when the reader is already
// running or no stream URL is configured.
func (r *StreamReader) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("stream reader already running")
	}
	r.running = true
	r.ctx = ctx
	r.mu.Unlock()

	cfg := r.config.Stream
	log := r.log.WithComponent("stream_reader").WithFields(logger.Fields{"operation": "start"})
	if cfg.URL == "" {
		log.Error("stream url is not configured")
		return fmt.Errorf("stream url is not configured")
	}

	log.WithFields(logger.Fields{"url": cfg.URL, "interval_ms": cfg.UpdateIntervalMs}).Info("starting stream reader")
	r.wg.Add(1)
	go r.stream(cfg.URL)
	log.Info("stream reader started successfully")
	return nil
}

// Stop terminates the websocket worker and waits for it to finish.
func (r *StreamReader) Stop() {
	r.mu.Lock()
	r.running = false
	r.mu.Unlock()

	r.log.WithComponent("stream_reader").Info("stopping stream reader")
	r.closeConn()
	r.wg.Wait()
	r.log.WithComponent("stream_reader").Info("stream reader stopped")
}

// stream handles the connection lifecycle: dial, subscribe, read until error,
// reconnect after the configured delay.
func (r *StreamReader) stream(wsURL string) {
	defer r.wg.Done()
	log := r.log.WithComponent("stream_reader").WithFields(logger.Fields{"worker": "stream"})

	attempts := 0
	for {
		if r.ctx.Err() != nil {
			r.setState(models.StateDisconnected)
			return
		}

		r.setState(models.StateConnecting)
		dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
		conn, _, err := dialer.DialContext(r.ctx, wsURL, nil)
		if err != nil {
			attempts++
			log.WithError(err).WithFields(logger.Fields{"attempt": attempts}).Warn("failed to connect websocket, retrying")
			if r.exhausted(attempts) {
				r.setState(models.StateFailed)
				log.Error("reconnect attempts exhausted, giving up")
				return
			}
			r.setState(models.StateDisconnected)
			if !r.waitReconnect() {
				return
			}
			continue
		}

		attempts = 0
		r.setConn(conn)
		r.setState(models.StateConnected)
		log.Info("websocket connection established")

		if err := r.subscribe(); err != nil {
			log.WithError(err).Warn("failed to subscribe")
			r.closeConn()
			continue
		}

		done := make(chan struct{})
		go r.pingLoop(done)
		r.readMessages(log)
		close(done)

		r.closeConn()
		r.streaming.Store(false)
		r.setState(models.StateDisconnected)
		if r.ctx.Err() != nil {
			return
		}
		r.reconnects.Add(1)
		log.Warn("websocket connection lost, reconnecting")
		if !r.waitReconnect() {
			return
		}
	}
}

// subscribe asks the server to start pushing updates and to send a full
// state snapshot so the cache is warm before the first delta arrives.
func (r *StreamReader) subscribe() error {
	if err := r.StartStreaming(); err != nil {
		return err
	}
	return r.RequestState()
}

func (r *StreamReader) readMessages(log *logger.Entry) {
	for {
		conn := r.getConn()
		if conn == nil {
			return
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if r.ctx.Err() == nil {
				log.WithError(err).Warn("websocket read error")
			}
			return
		}

		var frame struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(msg, &frame); err != nil {
			log.WithError(err).Debug("failed to decode frame envelope")
			continue
		}
		if frame.Type == "" {
			continue
		}

		r.lastUpdate.Store(time.Now().UnixNano())
		r.updateCount.Add(1)
		logger.IncrementFrameRead(len(msg))

		raw := models.RawFrame{
			Type:     models.FrameType(frame.Type),
			Data:     frame.Data,
			Received: time.Now(),
		}
		if r.channels.SendFrame(r.ctx, raw) {
			logger.RecordChannelMessage("frames", len(msg))
		} else if r.ctx.Err() != nil {
			return
		} else {
			log.Warn("frame channel full, dropping frame")
		}
	}
}

func (r *StreamReader) pingLoop(done chan struct{}) {
	interval := time.Duration(r.config.Stream.PingIntervalSec) * time.Second
	if interval <= 0 {
		interval = 20 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			conn := r.getConn()
			if conn == nil {
				return
			}
			deadline := time.Now().Add(5 * time.Second)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				r.log.WithComponent("stream_reader").WithError(err).Debug("ping failed")
				return
			}
		}
	}
}

// waitReconnect sleeps for the configured reconnect delay. It returns false
// when the context was cancelled while waiting.
func (r *StreamReader) waitReconnect() bool {
	delay := time.Duration(r.config.Stream.ReconnectDelayMs) * time.Millisecond
	if delay <= 0 {
		delay = 5 * time.Second
	}
	select {
	case <-time.After(delay):
		return true
	case <-r.ctx.Done():
		return false
	}
}

func (r *StreamReader) exhausted(attempts int) bool {
	max := r.config.Stream.MaxReconnectAttempts
	return max > 0 && attempts >= max
}

// StartStreaming asks the server to begin pushing real-time updates at the
// configured interval.
func (r *StreamReader) StartStreaming() error {
	interval := r.config.Stream.UpdateIntervalMs
	if interval <= 0 {
		interval = 1000
	}
	if err := r.send(streamCommand(cmdStartStreaming, map[string]interface{}{"interval_ms": interval})); err != nil {
		return err
	}
	r.streaming.Store(true)
	return nil
}

// StopStreaming asks the server to pause pushes without dropping the
// connection.
func (r *StreamReader) StopStreaming() error {
	if err := r.send(streamCommand(cmdStopStreaming, nil)); err != nil {
		return err
	}
	r.streaming.Store(false)
	return nil
}

// RequestState asks for a full snapshot of signals, prices and positions.
func (r *StreamReader) RequestState() error {
	return r.send(streamCommand(cmdRequestState, nil))
}

// RequestRecalc asks the server to recompute indicators for one symbol, or
// for every symbol when the argument is empty.
func (r *StreamReader) RequestRecalc(symbol string) error {
	var params map[string]interface{}
	if symbol != "" {
		params = map[string]interface{}{"symbol": symbol}
	}
	return r.send(streamCommand(cmdRequestRecalc, params))
}

// SetUpdateInterval changes the server push cadence for this session.
func (r *StreamReader) SetUpdateInterval(intervalMs int) error {
	if intervalMs <= 0 {
		return fmt.Errorf("update interval must be positive, got %d", intervalMs)
	}
	return r.send(streamCommand(cmdSetUpdateInterval, map[string]interface{}{"interval_ms": intervalMs}))
}

func (r *StreamReader) send(cmd map[string]interface{}) error {
	conn := r.getConn()
	if conn == nil {
		return fmt.Errorf("not connected")
	}
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	if err := conn.WriteJSON(cmd); err != nil {
		return fmt.Errorf("write command %v: %w", cmd["command"], err)
	}
	return nil
}

// streamCommand builds the outbound command envelope.
func streamCommand(name string, params map[string]interface{}) map[string]interface{} {
	cmd := map[string]interface{}{"command": name}
	for k, v := range params {
		cmd[k] = v
	}
	return cmd
}

// Status reports the externally visible connection and queue state.
func (r *StreamReader) Status() models.ConnectionStatus {
	state := r.state.Load().(models.ConnectionState)
	return models.ConnectionStatus{
		State:       state,
		Connected:   state == models.StateConnected,
		Streaming:   r.streaming.Load(),
		LastUpdate:  r.LastUpdate(),
		UpdateCount: r.updateCount.Load(),
		Reconnects:  r.reconnects.Load(),
		QueueSize:   r.channels.QueueDepth(),
	}
}

// LastUpdate returns the arrival time of the most recent frame.
func (r *StreamReader) LastUpdate() time.Time {
	nanos := r.lastUpdate.Load()
	if nanos == 0 {
		return time.Time{}
	}
	return time.Unix(0, nanos)
}

// UpdateCount returns the number of frames received since start.
func (r *StreamReader) UpdateCount() int64 {
	return r.updateCount.Load()
}

func (r *StreamReader) setState(s models.ConnectionState) {
	r.state.Store(s)
}

func (r *StreamReader) setConn(conn *websocket.Conn) {
	r.mu.Lock()
	r.conn = conn
	r.mu.Unlock()
}

func (r *StreamReader) getConn() *websocket.Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conn
}

func (r *StreamReader) closeConn() {
	r.mu.Lock()
	if r.conn != nil {
		r.conn.Close()
		r.conn = nil
	}
	r.mu.Unlock()
}
