package iso

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

var errTerminated = errors.New("worker terminated")

// GoroutineHost runs each isolate on its own goroutine with its own realm.
// Messages cross as clone records, so nothing is shared but moved bytes and
// handle resources.
type GoroutineHost struct {
	Logger *slog.Logger
}

func NewGoroutineHost() *GoroutineHost {
	return &GoroutineHost{}
}

func (h *GoroutineHost) Capabilities() Capabilities {
	return Capabilities{
		Buffers: true,
		Handles: []string{HandleMessagePort, HandleImageBitmap, HandleOffscreenCanvas},
	}
}

func (h *GoroutineHost) Spawn(req SpawnRequest) (Worker, error) {
	init, err := Clone(req.Init, req.Transfer)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &goroutineWorker{cancel: cancel, notify: make(chan struct{}, 1)}
	w.push(init)

	logger := req.Logger
	if logger == nil {
		logger = loggerOr(h.Logger)
	}
	go w.run(ctx, req, h.Capabilities(), logger)
	return w, nil
}

type goroutineWorker struct {
	cancel context.CancelFunc
	notify chan struct{}

	mu     sync.Mutex
	queue  []*CloneRecord
	closed bool
}

func (w *goroutineWorker) push(rec *CloneRecord) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return false
	}
	w.queue = append(w.queue, rec)
	select {
	case w.notify <- struct{}{}:
	default:
	}
	return true
}

// pop blocks until a message is queued or ctx ends.
func (w *goroutineWorker) pop(ctx context.Context) (*CloneRecord, bool) {
	for {
		w.mu.Lock()
		if len(w.queue) > 0 {
			rec := w.queue[0]
			w.queue[0] = nil
			w.queue = w.queue[1:]
			w.mu.Unlock()
			return rec, true
		}
		w.mu.Unlock()
		select {
		case <-w.notify:
		case <-ctx.Done():
			return nil, false
		}
	}
}

func (w *goroutineWorker) run(ctx context.Context, req SpawnRequest, caps Capabilities, logger *slog.Logger) {
	fail := func(err error) {
		w.shutdown()
		if ctx.Err() == nil {
			logger.Error("isolate failed", "err", err)
			req.OnError(&TransportError{Cause: err})
		}
	}
	defer func() {
		if p := recover(); p != nil {
			fail(fmt.Errorf("isolate panicked: %v", p))
		}
	}()

	iso, err := NewIsolate(req.Program, caps)
	if err != nil {
		fail(err)
		return
	}
	for {
		rec, ok := w.pop(ctx)
		if !ok {
			return
		}
		reply, err := iso.Handle(ctx, rec)
		if err != nil {
			fail(err)
			return
		}
		if reply == nil {
			continue
		}
		v, err := req.Realm.Revive(reply)
		if err != nil {
			fail(err)
			return
		}
		if ctx.Err() != nil {
			return
		}
		req.OnMessage(v)
	}
}

func (w *goroutineWorker) Post(msg Value, transfer []*Object) error {
	rec, err := Clone(msg, transfer)
	if err != nil {
		return err
	}
	if !w.push(rec) {
		return &TransportError{Cause: errTerminated}
	}
	return nil
}

func (w *goroutineWorker) shutdown() {
	w.mu.Lock()
	w.closed = true
	w.queue = nil
	w.mu.Unlock()
}

func (w *goroutineWorker) Terminate() error {
	w.shutdown()
	w.cancel()
	return nil
}
