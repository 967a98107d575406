package iso

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Config controls Workerize.
type Config struct {
	// Host runs the isolate; nil selects a GoroutineHost.
	Host Host
	// Transfer picks what moves with each call; the zero value is
	// AutoTransfer.
	Transfer TransferPolicy
	Logger   *slog.Logger
}

// Callback receives the outcome of one call. err is nil on success, a *Fault
// when the function threw, a *TransportError when the isolate died, or
// ErrClosed for calls made after Close.
type Callback func(err error, result Value)

// Func is a function running in its own isolate. Calls are answered in the
// order they were made.
type Func struct {
	id     string
	name   string
	realm  *Realm
	worker Worker
	caps   Capabilities
	policy TransferPolicy
	logger *slog.Logger

	// sendMu keeps sequence numbers in posting order.
	sendMu sync.Mutex

	mu        sync.Mutex
	callCount int
	runCount  int
	callbacks map[int]Callback
	closed    bool
}

// Workerize serializes fn together with deps and starts an isolate that
// runs it. deps are evaluated before fn is bound, so fn may refer to them
// as globals.
func Workerize(realm *Realm, fn Value, deps []Binding, cfg Config) (*Func, error) {
	if !fn.IsCallable() {
		return nil, &UsageError{Message: "cannot workerize " + fn.typeOf() + ", want a function"}
	}
	host := cfg.Host
	if host == nil {
		host = NewGoroutineHost()
	}
	f := &Func{
		id:        uuid.NewString(),
		name:      fn.Object().fn.name,
		realm:     realm,
		caps:      host.Capabilities(),
		policy:    cfg.Transfer,
		callbacks: make(map[int]Callback),
	}
	f.logger = loggerOr(cfg.Logger).With("worker", f.id)

	bindings := make([]Binding, 0, len(deps)+1)
	bindings = append(bindings, deps...)
	bindings = append(bindings, Binding{Name: "__iso.fn", Value: fn})
	ctx, err := CreateContext(bindings, ContextConfig{
		Capabilities: f.caps,
		CopyBuffers:  cfg.Transfer.mode == transferCopy,
	})
	if err != nil {
		return nil, err
	}
	data := ctx.PatchData()
	init := realm.NewArray(NewString(data.Code), ObjectValue(realm.NewArray(data.Values...)))

	w, err := host.Spawn(SpawnRequest{
		Realm:     realm,
		Program:   ctx.Program,
		Init:      ObjectValue(init),
		Transfer:  ctx.Transfer,
		OnMessage: f.receive,
		OnError:   f.fail,
		Logger:    f.logger,
	})
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.worker = w
	closed := f.closed
	f.mu.Unlock()
	if closed {
		_ = w.Terminate()
	}
	f.logger.Debug("worker spawned", "function", f.name, "program_bytes", len(ctx.Program), "patches", len(ctx.Patches))
	return f, nil
}

// ID identifies the worker in log records.
func (f *Func) ID() string { return f.id }

// Call queues one invocation. Arguments that cannot be cloned fail here; every
// other outcome, including a dead isolate, reaches cb exactly once.
func (f *Func) Call(args []Value, cb Callback) error {
	if cb == nil {
		return &UsageError{Message: "a callback is required"}
	}
	f.sendMu.Lock()
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		f.sendMu.Unlock()
		cb(ErrClosed, Undefined())
		return nil
	}
	f.callCount++
	seq := f.callCount
	f.callbacks[seq] = cb
	worker := f.worker
	f.mu.Unlock()

	msg := ObjectValue(f.realm.NewArray(args...))
	err := worker.Post(msg, f.policy.transfers(f.caps, args))
	f.sendMu.Unlock()
	if err == nil {
		f.logger.Debug("call posted", "seq", seq)
		return nil
	}

	var transport *TransportError
	if errors.As(err, &transport) {
		f.fail(err)
		return nil
	}
	f.mu.Lock()
	if f.callbacks[seq] != nil {
		delete(f.callbacks, seq)
		f.callCount--
	}
	f.mu.Unlock()
	return err
}

func (f *Func) receive(msg Value) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.runCount++
	seq := f.runCount
	cb := f.callbacks[seq]
	delete(f.callbacks, seq)
	f.mu.Unlock()

	result, err := decodeReply(f.realm, msg)
	f.logger.Debug("call answered", "seq", seq, "fault", err != nil)
	if cb != nil {
		cb(err, result)
	}
}

// fail delivers err to every call still waiting, oldest first, and tears the
// worker down.
func (f *Func) fail(err error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	pending := make([]Callback, 0, f.callCount-f.runCount)
	for seq := f.runCount + 1; seq <= f.callCount; seq++ {
		if cb := f.callbacks[seq]; cb != nil {
			pending = append(pending, cb)
		}
	}
	f.callbacks = nil
	worker := f.worker
	f.mu.Unlock()

	f.logger.Error("worker failed", "err", err, "pending", len(pending))
	if worker != nil {
		_ = worker.Terminate()
	}
	for _, cb := range pending {
		cb(err, Undefined())
	}
}

// Close terminates the isolate. Calls still in flight are dropped; later
// calls receive ErrClosed.
func (f *Func) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	dropped := len(f.callbacks)
	f.callbacks = nil
	worker := f.worker
	f.mu.Unlock()

	f.logger.Debug("worker closed", "dropped", dropped)
	if worker == nil {
		return nil
	}
	return worker.Terminate()
}

// Value exposes f to scripts of its realm as fn(...args, callback), with a
// close() method. Callbacks run on the worker's delivery goroutine.
func (f *Func) Value() Value {
	r := f.realm
	obj := r.NewGoFunction(f.name, func(c *Call) (Value, error) {
		n := len(c.Args)
		if n == 0 || !c.Args[n-1].IsCallable() {
			return Undefined(), r.Throw("TypeError", "the last argument to a workerized function must be a callback")
		}
		done := c.Args[n-1]
		args := append([]Value(nil), c.Args[:n-1]...)
		err := f.Call(args, func(err error, result Value) {
			if _, cbErr := r.Call(done, f.errorValue(err), result); cbErr != nil {
				f.logger.Error("callback threw", "err", cbErr)
			}
		})
		return Undefined(), err
	})
	closeFn := r.NewGoFunction("close", func(*Call) (Value, error) {
		return Undefined(), f.Close()
	})
	defineHidden(obj, "close", ObjectValue(closeFn))
	return ObjectValue(obj)
}

// errorValue is what a script callback sees for err.
func (f *Func) errorValue(err error) Value {
	if err == nil {
		return Null()
	}
	var fault *Fault
	if errors.As(err, &fault) && fault.Value.IsObject() {
		return fault.Value
	}
	return ObjectValue(f.realm.NewError("Error", err.Error()))
}
