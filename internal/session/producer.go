package session

import (
	"context"
	"sync"
	"time"

	"github.com/ecu-analyzer/backend/internal/models"
)

// LoopProducer replays a recorded message stream in fixed-size chunks,
// wrapping around at the end. Each emitted message is restamped to the time
// of emission so live buffers stay ordered.
type LoopProducer struct {
	mu    sync.Mutex
	msgs  []models.UnifiedMessage
	chunk int
	pos   int
	now   func() time.Time
}

// NewLoopProducer creates a producer over msgs. chunk defaults to 1.
func NewLoopProducer(msgs []models.UnifiedMessage, chunk int) *LoopProducer {
	if chunk <= 0 {
		chunk = 1
	}
	return &LoopProducer{
		msgs:  append([]models.UnifiedMessage(nil), msgs...),
		chunk: chunk,
		now:   time.Now,
	}
}

// Next returns the next chunk.
func (p *LoopProducer) Next(ctx context.Context) ([]models.UnifiedMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.msgs) == 0 {
		return nil, ErrNoMessages
	}

	now := p.now()
	out := make([]models.UnifiedMessage, 0, p.chunk)
	for i := 0; i < p.chunk; i++ {
		msg := p.msgs[p.pos]
		p.pos = (p.pos + 1) % len(p.msgs)

		// Keep emission order visible in the timestamp.
		ts := now.Add(time.Duration(i) * time.Millisecond)
		msg.Timestamp = models.FormatTimestamp(ts)
		payload := make(models.Payload, len(msg.Payload))
		for k, v := range msg.Payload {
			payload[k] = v
		}
		if _, ok := payload["timestamp"]; ok {
			payload["timestamp"] = ts.UnixMilli()
		}
		msg.Payload = payload
		out = append(out, msg)
	}
	return out, nil
}
