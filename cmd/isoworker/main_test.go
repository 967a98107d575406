package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const childEnv = "ISOWORKER_CLI_CHILD"

// TestMain lets `run -process` spawn this test binary as `<binary> worker`.
func TestMain(m *testing.M) {
	if os.Getenv(childEnv) == "1" && len(os.Args) > 1 && os.Args[1] == "worker" {
		if err := runCLI(os.Args); err != nil {
			os.Exit(2)
		}
		os.Exit(0)
	}
	os.Exit(m.Run())
}

const greetScript = `var count = 5;
var greet = function(name){ return "hi " + name };
function deps() { return [count, greet] }
function run(name) { return greet(name) }
function total(a, b) { return {sum: Number(a) + Number(b), count: count} }
function boom() { throw new TypeError("bad input") }`

func TestRunCLIHelp(t *testing.T) {
	assert.NoError(t, runCLI([]string{"isoworker", "help"}))
}

func TestRunCLIInvalidCommand(t *testing.T) {
	assert.ErrorContains(t, runCLI([]string{"isoworker", "unknown"}), "invalid command")
	assert.ErrorContains(t, runCLI([]string{"isoworker"}), "invalid command")
}

func TestEmitCommandPrintsProgram(t *testing.T) {
	scriptPath := writeScript(t, greetScript)

	out, err := captureStdout(t, func() error {
		return emitCommand([]string{scriptPath})
	})
	require.NoError(t, err)
	assert.Equal(t, "self.count = 5;\nself.greet = function(name){ return \"hi \" + name };\n", out)
}

func TestEmitCommandRequiresProducer(t *testing.T) {
	scriptPath := writeScript(t, `var x = 1;`)
	assert.ErrorContains(t, emitCommand([]string{scriptPath}), "not a function")
	assert.ErrorContains(t, emitCommand(nil), "script path required")
}

func TestRunCommandExecutesFunctionAndPrintsResult(t *testing.T) {
	scriptPath := writeScript(t, greetScript)

	out, err := captureStdout(t, func() error {
		return runCommand([]string{scriptPath, "world"})
	})
	require.NoError(t, err)
	assert.Equal(t, "hi world\n", out)

	out, err = captureStdout(t, func() error {
		return runCommand([]string{"-fn", "total", scriptPath, "2", "3"})
	})
	require.NoError(t, err)
	assert.Equal(t, "{ sum: 5, count: 5 }\n", out)
}

func TestRunCommandReportsScriptErrors(t *testing.T) {
	scriptPath := writeScript(t, greetScript)

	err := runCommand([]string{"-fn", "boom", scriptPath})
	assert.ErrorContains(t, err, "execution failed")
	assert.ErrorContains(t, err, "bad input")

	assert.ErrorContains(t, runCommand([]string{"-fn", "count", scriptPath}), "not a function")
	assert.ErrorContains(t, runCommand(nil), "script path required")
}

func TestRunCommandInChildProcess(t *testing.T) {
	if testing.Short() {
		t.Skip("spawns a child process")
	}
	t.Setenv(childEnv, "1")
	scriptPath := writeScript(t, greetScript)

	out, err := captureStdout(t, func() error {
		return runCommand([]string{"-process", scriptPath, "child"})
	})
	require.NoError(t, err)
	assert.Equal(t, "hi child\n", out)
}

func writeScript(t *testing.T, source string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "script.js")
	require.NoError(t, os.WriteFile(path, []byte(source), 0o644))
	return path
}

func captureStdout(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	orig := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	runErr := fn()
	_ = w.Close()
	os.Stdout = orig

	var buf bytes.Buffer
	_, copyErr := io.Copy(&buf, r)
	require.NoError(t, copyErr)
	_ = r.Close()
	return buf.String(), runErr
}
