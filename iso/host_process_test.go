package iso

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const helperEnv = "ISO_WORKER_HELPER"

// TestMain doubles as the child of ProcessHost: with helperEnv set the test
// binary serves one isolate on stdin/stdout instead of running tests.
func TestMain(m *testing.M) {
	if os.Getenv(helperEnv) == "1" {
		if err := ServeProcess(context.Background(), os.Stdin, os.Stdout, nil); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		os.Exit(0)
	}
	os.Exit(m.Run())
}

func helperHost(t *testing.T) *ProcessHost {
	t.Helper()
	if testing.Short() {
		t.Skip("spawns a child process")
	}
	return &ProcessHost{
		Path: os.Args[0],
		Args: []string{"-test.run=^$"},
		Env:  append(os.Environ(), helperEnv+"=1"),
	}
}

func TestProcessHostGreet(t *testing.T) {
	r := greetRealm(t)
	f, err := Workerize(r, r.GlobalValue("run"), bindGlobals(r, "count", "greet"), Config{Host: helperHost(t)})
	require.NoError(t, err)
	defer f.Close()

	done := make(chan outcome, 2)
	require.NoError(t, f.Call([]Value{NewString("world")}, collect(done)))
	require.NoError(t, f.Call([]Value{NewString("again")}, collect(done)))

	got := await(t, done)
	require.NoError(t, got.err)
	assert.Equal(t, "hi world", got.result.Str())
	got = await(t, done)
	require.NoError(t, got.err)
	assert.Equal(t, "hi again", got.result.Str())
}

func TestProcessHostFault(t *testing.T) {
	r := greetRealm(t)
	f, err := Workerize(r, r.GlobalValue("fail"), nil, Config{Host: helperHost(t)})
	require.NoError(t, err)
	defer f.Close()

	done := make(chan outcome, 1)
	require.NoError(t, f.Call([]Value{NewString("remote")}, collect(done)))
	got := await(t, done)
	var fault *Fault
	require.ErrorAs(t, got.err, &fault)
	assert.Equal(t, "RangeError", fault.Name)
	assert.Equal(t, "nope remote", fault.Message)
}

func TestProcessHostMovesBuffers(t *testing.T) {
	r := greetRealm(t)
	f, err := Workerize(r, r.GlobalValue("size"), nil, Config{Host: helperHost(t)})
	require.NoError(t, err)
	defer f.Close()

	buf := r.NewArrayBuffer([]byte{1, 2, 3})
	done := make(chan outcome, 1)
	require.NoError(t, f.Call([]Value{ObjectValue(buf)}, collect(done)))
	got := await(t, done)
	require.NoError(t, got.err)
	assert.Equal(t, float64(3), got.result.Number())
	assert.True(t, buf.Detached())

	port := r.NewHandle(HandleMessagePort, nil)
	err = f.Call([]Value{ObjectValue(port)}, func(error, Value) { t.Error("handle calls must fail synchronously") })
	name, _, _ := errorParts(err)
	assert.Equal(t, "DataCloneError", name)
}

func TestProcessHostChildCrash(t *testing.T) {
	r := NewRealm()
	crash, err := r.NewClosure("iso_test.crash", "crash", nil)
	require.NoError(t, err)
	f, err := Workerize(r, ObjectValue(crash), nil, Config{Host: helperHost(t)})
	require.NoError(t, err)

	done := make(chan outcome, 2)
	require.NoError(t, f.Call([]Value{NewString("panic")}, collect(done)))
	require.NoError(t, f.Call([]Value{NewString("queued")}, collect(done)))
	for i := 0; i < 2; i++ {
		got := await(t, done)
		var transport *TransportError
		require.ErrorAs(t, got.err, &transport)
	}
	assert.NoError(t, f.Close())
}
