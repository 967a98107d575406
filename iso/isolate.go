package iso

import (
	"context"
	"fmt"
)

// Isolate is the worker side of the protocol: a fresh realm that evaluated
// one program. The first message it handles is the patch payload; every
// later message is the argument list of one call to __iso.fn.
type Isolate struct {
	realm  *Realm
	caps   Capabilities
	inited bool
}

// NewIsolate evaluates program in a new realm. Replies move whatever caps
// allows back to the caller.
func NewIsolate(program string, caps Capabilities) (*Isolate, error) {
	r := NewRealm()
	if _, err := r.Eval(program); err != nil {
		return nil, fmt.Errorf("evaluate program: %w", err)
	}
	return &Isolate{realm: r, caps: caps}, nil
}

func (iso *Isolate) Realm() *Realm { return iso.realm }

// Handle processes one inbound message and returns the reply to send, nil
// for the patch payload. Errors are fatal to the isolate; faults raised by
// the workerized function are replies.
func (iso *Isolate) Handle(ctx context.Context, rec *CloneRecord) (*CloneRecord, error) {
	msg, err := iso.realm.Revive(rec)
	if err != nil {
		return nil, err
	}
	if !iso.inited {
		iso.inited = true
		return nil, iso.init(msg)
	}

	args := msg.Object()
	if args == nil || args.class != ClassArray {
		return nil, fmt.Errorf("call message is %s, not an argument list", msg.String())
	}
	reply := iso.call(ctx, args.Items())
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	items := reply.Object().Items()
	out, err := Clone(reply, Collect(iso.caps, items[1]))
	if err != nil {
		return Clone(faultReply(iso.realm, err), nil)
	}
	return out, nil
}

func (iso *Isolate) init(msg Value) error {
	obj := msg.Object()
	if obj == nil || obj.class != ClassArray || obj.arrayLen != 2 {
		return fmt.Errorf("patch payload is %s, want [code, values]", msg.String())
	}
	items := obj.Items()
	var values []Value
	if list := items[1].Object(); list != nil {
		values = list.Items()
	}
	if err := iso.realm.applyPatches(PatchData{Code: items[0].String(), Values: values}); err != nil {
		return fmt.Errorf("apply patches: %w", err)
	}
	return nil
}

// call runs __iso.fn and waits for a returned promise to settle.
func (iso *Isolate) call(ctx context.Context, args []Value) Value {
	r := iso.realm
	fn, err := r.namespace.Get(StringKey("fn"))
	if err != nil {
		return faultReply(r, err)
	}
	if !fn.IsCallable() {
		return faultReply(r, typeErrorf("workerized value is %s, not a function", fn.typeOf()))
	}
	v, err := callFunction(fn.Object(), Undefined(), args)
	if err != nil {
		return faultReply(r, err)
	}
	if p := v.Object(); p != nil && p.promise != nil {
		select {
		case <-p.promise.done:
		case <-ctx.Done():
			return Undefined()
		}
		if v, err = p.Await(); err != nil {
			return faultReply(r, err)
		}
	}
	return resultReply(r, v)
}
