package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/deluthium/bridgebot/internal/domain"
)

// defaultFlushSize is the buffered tick count that triggers an upload.
const defaultFlushSize = 500

// quoteTick is one archived quote observation, serialized as NDJSON.
type quoteTick struct {
	Ticker     string    `json:"ticker"`
	Side       string    `json:"side,omitempty"`
	Price      float64   `json:"price"`
	Size       float64   `json:"size,omitempty"`
	QuotePrice float64   `json:"quotePrice,omitempty"`
	Event      string    `json:"event"`
	Timestamp  time.Time `json:"timestamp"`
}

// ObjectPutter uploads one object. *Writer satisfies it.
type ObjectPutter interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) error
}

// QuoteArchiver buffers quote observations from bridge events and uploads
// them to object storage as NDJSON batches under
// "{prefix}/YYYY/MM/DD/HHMMSS-{id}.ndjson".
type QuoteArchiver struct {
	writer ObjectPutter
	logger *slog.Logger
	prefix string

	mu        sync.Mutex
	buf       []quoteTick
	flushSize int
}

// NewQuoteArchiver creates a QuoteArchiver writing through the given putter.
// prefix is the object key prefix, e.g. "quotes".
func NewQuoteArchiver(writer ObjectPutter, prefix string, logger *slog.Logger) *QuoteArchiver {
	if prefix == "" {
		prefix = "quotes"
	}
	return &QuoteArchiver{
		writer:    writer,
		logger:    logger.With(slog.String("component", "quote_archiver")),
		prefix:    prefix,
		flushSize: defaultFlushSize,
	}
}

// HandleEvent records the quote behind a bridge event. Register it on the
// event emitter for bridge:placed and bridge:filled.
func (a *QuoteArchiver) HandleEvent(ev domain.Event) {
	if ev.Order == nil {
		return
	}

	tick := quoteTick{
		Ticker:     ev.Order.Ticker,
		Side:       string(ev.Order.Side),
		Price:      ev.Order.Price,
		Size:       ev.Order.Size,
		QuotePrice: ev.Order.Quote.Price,
		Event:      string(ev.Type),
		Timestamp:  ev.Timestamp,
	}

	a.mu.Lock()
	a.buf = append(a.buf, tick)
	full := len(a.buf) >= a.flushSize
	a.mu.Unlock()

	if full {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := a.Flush(ctx); err != nil {
			a.logger.Warn("flush on full buffer failed", slog.String("error", err.Error()))
		}
	}
}

// Flush uploads the buffered ticks as one NDJSON object and clears the
// buffer. A no-op when the buffer is empty.
func (a *QuoteArchiver) Flush(ctx context.Context) error {
	a.mu.Lock()
	batch := a.buf
	a.buf = nil
	a.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	for _, tick := range batch {
		if err := enc.Encode(tick); err != nil {
			return fmt.Errorf("s3blob: encode tick: %w", err)
		}
	}

	now := time.Now().UTC()
	key := fmt.Sprintf("%s/%s/%s-%s.ndjson",
		a.prefix,
		now.Format("2006/01/02"),
		now.Format("150405"),
		uuid.NewString()[:8],
	)

	if err := a.writer.Put(ctx, key, &body, "application/x-ndjson"); err != nil {
		return fmt.Errorf("s3blob: archive batch: %w", err)
	}

	a.logger.Info("archived quote batch",
		slog.String("key", key),
		slog.Int("ticks", len(batch)),
	)
	return nil
}

// RunLoop flushes on a fixed interval until the context is cancelled, then
// makes a final flush with a background timeout.
func (a *QuoteArchiver) RunLoop(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := a.Flush(flushCtx); err != nil {
				a.logger.Warn("final flush failed", slog.String("error", err.Error()))
			}
			return ctx.Err()
		case <-ticker.C:
			if err := a.Flush(ctx); err != nil {
				a.logger.Warn("periodic flush failed", slog.String("error", err.Error()))
			}
		}
	}
}
