package channel

import (
	"context"
	"sync"

	"signalflow/logger"
	"signalflow/models"
)

type ChannelStats struct {
	FramesSent     int64
	FramesDropped  int64
	SignalsSent    int64
	SignalsDropped int64
}

// Channels wires the transport adapter to the processor engine (Frames) and
// the engine to the drain loop (Signals). Signals is the FIFO signal queue:
// buffered, single consumer, strict arrival order.
type Channels struct {
	Frames  chan models.RawFrame
	Signals chan models.Signal

	stats      ChannelStats
	statsMutex sync.RWMutex
	log        *logger.Log
}

func NewChannels(frameBufferSize, signalBufferSize int) *Channels {
	log := logger.GetLogger()
	c := &Channels{
		Frames:  make(chan models.RawFrame, frameBufferSize),
		Signals: make(chan models.Signal, signalBufferSize),
		log:     log,
	}

	log.WithComponent("channels").WithFields(logger.Fields{
		"frame_buffer_size":  frameBufferSize,
		"signal_buffer_size": signalBufferSize,
	}).Info("channels initialized")

	return c
}

func (c *Channels) Close() {
	close(c.Frames)
	close(c.Signals)
	c.log.WithComponent("channels").Info("channels closed")
}

// SendFrame forwards an inbound frame without blocking. A full buffer drops
// the frame and bumps the drop counter.
func (c *Channels) SendFrame(ctx context.Context, frame models.RawFrame) bool {
	select {
	case c.Frames <- frame:
		c.incr(func(s *ChannelStats) { s.FramesSent++ })
		return true
	case <-ctx.Done():
		return false
	default:
		c.incr(func(s *ChannelStats) { s.FramesDropped++ })
		return false
	}
}

// SendSignal enqueues a signal for the drain loop.
func (c *Channels) SendSignal(ctx context.Context, sig models.Signal) bool {
	select {
	case c.Signals <- sig:
		c.incr(func(s *ChannelStats) { s.SignalsSent++ })
		logger.IncrementSignalEmitted()
		return true
	case <-ctx.Done():
		return false
	default:
		c.incr(func(s *ChannelStats) { s.SignalsDropped++ })
		return false
	}
}

// QueueDepth reports how many signals are waiting to be drained.
func (c *Channels) QueueDepth() int {
	return len(c.Signals)
}

func (c *Channels) GetStats() ChannelStats {
	c.statsMutex.RLock()
	defer c.statsMutex.RUnlock()
	return c.stats
}

func (c *Channels) incr(f func(*ChannelStats)) {
	c.statsMutex.Lock()
	f(&c.stats)
	c.statsMutex.Unlock()
}
