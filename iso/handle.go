package iso

import "sync"

// Handle kinds the in-process host can move between realms.
const (
	HandleMessagePort     = "MessagePort"
	HandleImageBitmap     = "ImageBitmap"
	HandleOffscreenCanvas = "OffscreenCanvas"
)

// handleData is an externally owned resource. It can only be transferred;
// once moved the source object is detached and Resource returns nil.
type handleData struct {
	kind     string
	resource any
	detached bool
}

func (o *Object) HandleKind() string {
	if o.handle == nil {
		return ""
	}
	return o.handle.kind
}

func (o *Object) Resource() any {
	if o.handle == nil {
		return nil
	}
	return o.handle.resource
}

type promiseStatus int

const (
	promisePending promiseStatus = iota
	promiseFulfilled
	promiseRejected
)

// promiseState may be settled from any goroutine; Await blocks until it is.
type promiseState struct {
	mu     sync.Mutex
	status promiseStatus
	value  Value
	done   chan struct{}
}

func newPromiseState() *promiseState {
	return &promiseState{done: make(chan struct{})}
}

func (p *promiseState) settle(status promiseStatus, v Value) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status != promisePending {
		return
	}
	if obj := v.Object(); status == promiseFulfilled && obj != nil && obj.promise != nil && obj.promise != p {
		go func() {
			<-obj.promise.done
			s, val := obj.promise.result()
			p.settle(s, val)
		}()
		return
	}
	p.status = status
	p.value = v
	close(p.done)
}

func (p *promiseState) result() (promiseStatus, Value) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status, p.value
}

// PromiseState reports whether a promise has settled, and with what.
func (o *Object) PromiseState() (settled, rejected bool, v Value) {
	if o.promise == nil {
		return false, false, Undefined()
	}
	status, val := o.promise.result()
	return status != promisePending, status == promiseRejected, val
}

// Await blocks until the promise settles. A rejection is returned as a
// *ThrowError carrying the reason.
func (o *Object) Await() (Value, error) {
	if o.promise == nil {
		return ObjectValue(o), nil
	}
	<-o.promise.done
	status, v := o.promise.result()
	if status == promiseRejected {
		return Undefined(), &ThrowError{Value: v}
	}
	return v, nil
}
