package usecase

import (
	"context"

	"RugTracker/internal/domain/models"
	drepo "RugTracker/internal/domain/repository"
	mid "RugTracker/internal/middleware"
)

// TickCollector collects ticks from the game feed and processes them.
type TickCollector struct {
	stream  drepo.FeedStream
	proc    *TickProcessor
	metrics drepo.Metrics
	pipe    *mid.RealtimePipeline
}

// NewTickCollector creates a new TickCollector instance.
func NewTickCollector(stream drepo.FeedStream, proc *TickProcessor, metrics drepo.Metrics, pipe *mid.RealtimePipeline) *TickCollector {
	return &TickCollector{stream: stream, proc: proc, metrics: metrics, pipe: pipe}
}

// IsConnected returns true if the game feed is connected.
func (c *TickCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *TickCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.proc.Restore(ctx); err != nil {
		return err
	}
	if c.pipe != nil {
		c.pipe.Start(ctx)
	}
	tickCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, tickCh, errCh)
	return nil
}

// consume drains the feed subscription. The stream's reader goroutine
// exits and closes both channels on any read error, so each reconnect
// needs a fresh Read subscription.
func (c *TickCollector) consume(ctx context.Context, tickCh <-chan *models.TickObservation, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err == nil {
				continue
			}
			c.metrics.RecordError("stream")
			if tickCh, errCh, ok = c.resubscribe(ctx); !ok {
				return
			}
		case t, ok := <-tickCh:
			if !ok {
				if tickCh, errCh, ok = c.resubscribe(ctx); !ok {
					return
				}
				continue
			}
			if t == nil {
				continue
			}
			if c.pipe != nil {
				_ = c.pipe.Process(ctx, t)
			} else {
				_ = c.proc.Process(ctx, t)
			}
		}
	}
}

// resubscribe re-dials until the feed accepts and returns a fresh
// subscription; false means the context ended first. Pacing between
// attempts is the stream's reconnect delay.
func (c *TickCollector) resubscribe(ctx context.Context) (<-chan *models.TickObservation, <-chan error, bool) {
	for {
		if ctx.Err() != nil {
			return nil, nil, false
		}
		if err := c.stream.Reconnect(ctx); err != nil {
			c.metrics.RecordError("stream_reconnect")
			continue
		}
		tickCh, errCh := c.stream.Read(ctx)
		return tickCh, errCh, true
	}
}

// Processor returns the underlying TickProcessor for lifecycle management.
func (c *TickCollector) Processor() *TickProcessor { return c.proc }

// Shutdown stops the pipeline and closes the feed.
func (c *TickCollector) Shutdown(ctx context.Context) error {
	if c.pipe != nil {
		c.pipe.Stop()
	}
	return c.stream.Close()
}
