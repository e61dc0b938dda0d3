package history

import (
	"context"
	"log/slog"
	"time"
)

// Writer decouples request handling from persistence: Enqueue returns
// immediately and a background goroutine drains into the store.
type Writer struct {
	sink      Saver
	queue     chan Record
	queueSize int

	consecutiveFail int

	done chan struct{}
}

func NewWriter(sink Saver, queueSize int) *Writer {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Writer{
		sink:      sink,
		queue:     make(chan Record, queueSize),
		queueSize: queueSize,
		done:      make(chan struct{}),
	}
}

// Enqueue queues a record for writing. Never blocks.
func (w *Writer) Enqueue(rec Record) {
	select {
	case w.queue <- rec:
		return
	default:
	}

	// Backpressure: drop the oldest queued record to admit the new one.
	select {
	case dropped := <-w.queue:
		slog.Warn("history queue full, dropping oldest record",
			"dropped_address", dropped.NormalizedAddress, "queue_size", w.queueSize)
	default:
	}
	select {
	case w.queue <- rec:
	default:
	}
}

// Start begins draining. On ctx cancellation the writer flushes whatever
// is queued, then signals Wait.
func (w *Writer) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case rec := <-w.queue:
				w.write(rec)
			case <-ctx.Done():
				w.drain()
				close(w.done)
				return
			}
		}
	}()
}

// Wait blocks until the writer has completed its final drain.
func (w *Writer) Wait() {
	<-w.done
}

// QueueLen returns the current queue depth (for health checks).
func (w *Writer) QueueLen() int {
	return len(w.queue)
}

func (w *Writer) drain() {
	for {
		select {
		case rec := <-w.queue:
			w.write(rec)
		default:
			return
		}
	}
}

func (w *Writer) write(rec Record) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := w.sink.Save(ctx, rec); err != nil {
		w.consecutiveFail++
		slog.Error("failed to save analysis record",
			"error", err, "address", rec.NormalizedAddress, "consecutive_failures", w.consecutiveFail)
		if w.consecutiveFail >= 3 {
			slog.Error("3 consecutive history write failures", "queue_depth", len(w.queue))
		}
		return
	}
	w.consecutiveFail = 0
}
