package iso

import (
	"bytes"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	// delay(value, ms) settles with value after ms milliseconds.
	RegisterBody("iso_test.delay", func(c *Call) (Value, error) {
		p, resolve, _ := c.Realm.NewPromise()
		value, wait := c.Arg(0), time.Duration(c.Arg(1).Number())*time.Millisecond
		go func() {
			time.Sleep(wait)
			resolve(value)
		}()
		return ObjectValue(p), nil
	})
	// crash("panic") takes the isolate down; anything else is echoed.
	RegisterBody("iso_test.crash", func(c *Call) (Value, error) {
		if c.Arg(0).String() == "panic" {
			time.Sleep(20 * time.Millisecond)
			panic("isolate blew up")
		}
		return c.Arg(0), nil
	})
}

type outcome struct {
	err    error
	result Value
}

func collect(ch chan<- outcome) Callback {
	return func(err error, result Value) {
		ch <- outcome{err: err, result: result}
	}
}

func await(t *testing.T, ch <-chan outcome) outcome {
	t.Helper()
	select {
	case o := <-ch:
		return o
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a callback")
		return outcome{}
	}
}

func greetRealm(t *testing.T) *Realm {
	return newScriptRealm(t, `var count = 5;
var greet = function(name){ return "hi " + name };
var run = function(name){ return greet(name) };
var fail = function(kind){ throw new RangeError("nope " + kind) };
var failPlain = function(){ throw {name: "CustomError", message: "custom"} };
var size = function(buf){ return buf.byteLength };`)
}

func TestWorkerizeGreet(t *testing.T) {
	r := greetRealm(t)
	f, err := Workerize(r, r.GlobalValue("run"), bindGlobals(r, "count", "greet"), Config{})
	require.NoError(t, err)
	defer f.Close()

	done := make(chan outcome, 1)
	require.NoError(t, f.Call([]Value{NewString("world")}, collect(done)))
	got := await(t, done)
	require.NoError(t, got.err)
	assert.Equal(t, "hi world", got.result.Str())
}

func TestWorkerizeFaultKeepsErrorIdentity(t *testing.T) {
	r := greetRealm(t)
	f, err := Workerize(r, r.GlobalValue("fail"), nil, Config{})
	require.NoError(t, err)
	defer f.Close()

	done := make(chan outcome, 1)
	require.NoError(t, f.Call([]Value{NewString("x")}, collect(done)))
	got := await(t, done)

	var fault *Fault
	require.ErrorAs(t, got.err, &fault)
	assert.Equal(t, "RangeError", fault.Name)
	assert.Equal(t, "nope x", fault.Message)
	require.NoError(t, r.SetGlobal("caught", fault.Value))
	requireTrue(t, r, `caught instanceof RangeError`, `caught.message === "nope x"`)

	g, err := Workerize(r, r.GlobalValue("failPlain"), nil, Config{})
	require.NoError(t, err)
	defer g.Close()
	require.NoError(t, g.Call(nil, collect(done)))
	got = await(t, done)
	require.ErrorAs(t, got.err, &fault)
	assert.Equal(t, "CustomError", fault.Name)
	require.NoError(t, r.SetGlobal("custom", fault.Value))
	requireTrue(t, r, `custom instanceof Error`, `custom.name === "CustomError"`, `custom.message === "custom"`)
}

func TestWorkerizeAnswersInCallOrder(t *testing.T) {
	r := NewRealm()
	delay, err := r.NewClosure("iso_test.delay", "delay", nil)
	require.NoError(t, err)
	f, err := Workerize(r, ObjectValue(delay), nil, Config{})
	require.NoError(t, err)
	defer f.Close()

	done := make(chan outcome, 3)
	for i, wait := range []int64{40, 0, 10} {
		require.NoError(t, f.Call([]Value{NewInt(int64(i + 1)), NewInt(wait)}, collect(done)))
	}
	for want := 1; want <= 3; want++ {
		got := await(t, done)
		require.NoError(t, got.err)
		assert.Equal(t, float64(want), got.result.Number())
	}
}

func TestWorkerizeTransportFailureFailsPendingCalls(t *testing.T) {
	r := NewRealm()
	crash, err := r.NewClosure("iso_test.crash", "crash", nil)
	require.NoError(t, err)
	f, err := Workerize(r, ObjectValue(crash), nil, Config{})
	require.NoError(t, err)

	done := make(chan outcome, 2)
	require.NoError(t, f.Call([]Value{NewString("panic")}, collect(done)))
	require.NoError(t, f.Call([]Value{NewString("queued")}, collect(done)))

	for i := 0; i < 2; i++ {
		got := await(t, done)
		var transport *TransportError
		require.ErrorAs(t, got.err, &transport)
		assert.Contains(t, transport.Error(), "isolate blew up")
	}

	late := make(chan outcome, 1)
	require.NoError(t, f.Call([]Value{NewString("late")}, collect(late)))
	select {
	case got := <-late:
		assert.ErrorIs(t, got.err, ErrClosed)
	default:
		t.Fatal("calls after a transport failure are answered synchronously")
	}
	assert.NoError(t, f.Close())
}

func TestWorkerizeUsageErrors(t *testing.T) {
	r := greetRealm(t)

	_, err := Workerize(r, NewInt(1), nil, Config{})
	var usage *UsageError
	require.ErrorAs(t, err, &usage)

	local := r.NewGoFunction("local", func(*Call) (Value, error) { return Undefined(), nil })
	_, err = Workerize(r, r.GlobalValue("run"), []Binding{{Name: "local", Value: ObjectValue(local)}}, Config{})
	var encErr *EncodingError
	require.ErrorAs(t, err, &encErr)

	f, err := Workerize(r, r.GlobalValue("run"), bindGlobals(r, "greet"), Config{})
	require.NoError(t, err)
	defer f.Close()
	require.ErrorAs(t, f.Call(nil, nil), &usage)
}

func TestWorkerizeCloneErrorIsSynchronous(t *testing.T) {
	r := greetRealm(t)
	f, err := Workerize(r, r.GlobalValue("run"), bindGlobals(r, "greet"), Config{})
	require.NoError(t, err)
	defer f.Close()

	never := func(error, Value) { t.Error("callback must not run for an uncloneable argument") }
	err = f.Call([]Value{r.GlobalValue("greet")}, never)
	name, _, _ := errorParts(err)
	assert.Equal(t, "DataCloneError", name)

	done := make(chan outcome, 1)
	require.NoError(t, f.Call([]Value{NewString("again")}, collect(done)))
	got := await(t, done)
	require.NoError(t, got.err)
	assert.Equal(t, "hi again", got.result.Str())
}

func TestWorkerizeCloseDropsLaterCalls(t *testing.T) {
	r := greetRealm(t)
	f, err := Workerize(r, r.GlobalValue("run"), bindGlobals(r, "greet"), Config{})
	require.NoError(t, err)

	require.NoError(t, f.Close())
	require.NoError(t, f.Close())

	var got error
	require.NoError(t, f.Call([]Value{NewString("x")}, func(err error, _ Value) { got = err }))
	assert.ErrorIs(t, got, ErrClosed)
}

func TestWorkerizeTransferPolicies(t *testing.T) {
	r := greetRealm(t)

	moved := r.NewArrayBuffer([]byte{1, 2, 3, 4})
	f, err := Workerize(r, r.GlobalValue("size"), nil, Config{})
	require.NoError(t, err)
	defer f.Close()
	done := make(chan outcome, 1)
	require.NoError(t, f.Call([]Value{ObjectValue(moved)}, collect(done)))
	got := await(t, done)
	require.NoError(t, got.err)
	assert.Equal(t, float64(4), got.result.Number())
	assert.True(t, moved.Detached())

	kept := r.NewArrayBuffer([]byte{1, 2})
	g, err := Workerize(r, r.GlobalValue("size"), nil, Config{Transfer: CopyOnly})
	require.NoError(t, err)
	defer g.Close()
	require.NoError(t, g.Call([]Value{ObjectValue(kept)}, collect(done)))
	got = await(t, done)
	require.NoError(t, got.err)
	assert.Equal(t, float64(2), got.result.Number())
	assert.False(t, kept.Detached())
}

func TestWorkerizeScriptValue(t *testing.T) {
	r := greetRealm(t)
	f, err := Workerize(r, r.GlobalValue("run"), bindGlobals(r, "greet"), Config{})
	require.NoError(t, err)

	done := make(chan outcome, 2)
	require.NoError(t, r.SetGlobal("remote", f.Value()))
	require.NoError(t, r.SetGlobal("done", ObjectValue(r.NewGoFunction("done", func(c *Call) (Value, error) {
		var err error
		if !c.Arg(0).IsNull() {
			err = errors.New(c.Arg(0).String())
		}
		done <- outcome{err: err, result: c.Arg(1)}
		return Undefined(), nil
	}))))

	_, err = r.Eval(`remote("world", done)`)
	require.NoError(t, err)
	got := await(t, done)
	require.NoError(t, got.err)
	assert.Equal(t, "hi world", got.result.Str())

	_, err = r.Eval(`remote("world")`)
	name, _, _ := errorParts(err)
	assert.Equal(t, "TypeError", name)

	_, err = r.Eval(`remote.close(); remote("late", done)`)
	require.NoError(t, err)
	got = await(t, done)
	require.Error(t, got.err)
	assert.Contains(t, got.err.Error(), "context closed")
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWorkerizeLogsWithWorkerID(t *testing.T) {
	var out syncBuffer
	logger := slog.New(slog.NewTextHandler(&out, &slog.HandlerOptions{Level: slog.LevelDebug}))

	r := greetRealm(t)
	f, err := Workerize(r, r.GlobalValue("run"), bindGlobals(r, "greet"), Config{Logger: logger})
	require.NoError(t, err)
	done := make(chan outcome, 1)
	require.NoError(t, f.Call([]Value{NewString("log")}, collect(done)))
	await(t, done)
	require.NoError(t, f.Close())

	logs := out.String()
	assert.NotEmpty(t, f.ID())
	assert.Contains(t, logs, "worker="+f.ID())
	assert.Contains(t, logs, "worker spawned")
	assert.Contains(t, logs, "call answered")
	assert.Contains(t, logs, "worker closed")
}
