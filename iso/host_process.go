package iso

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// ProcessHost runs each isolate in a child process speaking the frame
// protocol on stdin/stdout. The child is expected to call ServeProcess;
// `isoworker worker` does.
type ProcessHost struct {
	// Path is the executable to start; it defaults to the running binary.
	Path string
	// Args are passed to the child; they default to ["worker"].
	Args []string
	// Env is the child's environment; nil inherits ours.
	Env    []string
	Logger *slog.Logger
}

// Capabilities reports that buffers move: their bytes are written to the
// child and the source is detached. Handles cannot leave the process.
func (h *ProcessHost) Capabilities() Capabilities {
	return Capabilities{Buffers: true}
}

func (h *ProcessHost) Spawn(req SpawnRequest) (Worker, error) {
	logger := req.Logger
	if logger == nil {
		logger = loggerOr(h.Logger)
	}
	path := h.Path
	if path == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("locate worker executable: %w", err)
		}
		path = exe
	}
	args := h.Args
	if args == nil {
		args = []string{"worker"}
	}

	init, err := Clone(req.Init, req.Transfer)
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(path, args...)
	cmd.Env = h.Env
	cmd.Stderr = os.Stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("worker stdin: %w", err)
	}
	// A plain pipe keeps Wait from closing stdout under the reader.
	stdout, childOut, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("worker stdout: %w", err)
	}
	cmd.Stdout = childOut
	if err := cmd.Start(); err != nil {
		stdout.Close()
		childOut.Close()
		return nil, fmt.Errorf("start worker: %w", err)
	}
	childOut.Close()

	w := &processWorker{cmd: cmd, stdin: stdin, frames: newFrameWriter(stdin)}
	if err := w.frames.writeProgram(req.Program); err != nil {
		w.kill()
		return nil, &TransportError{Cause: err}
	}
	if err := w.frames.writeRecord(init); err != nil {
		w.kill()
		return nil, &TransportError{Cause: err}
	}
	logger.Debug("worker process started", "pid", cmd.Process.Pid)

	var g errgroup.Group
	g.Go(func() error {
		defer stdout.Close()
		frames := newFrameReader(stdout)
		for {
			f, err := frames.next()
			if errors.Is(err, io.EOF) {
				return errors.New("worker closed its output")
			}
			if err != nil {
				return fmt.Errorf("read reply: %w", err)
			}
			if f.kind != frameMessage {
				return fmt.Errorf("unexpected frame kind %d", f.kind)
			}
			v, err := req.Realm.Revive(f.record)
			if err != nil {
				return err
			}
			if w.terminated.Load() {
				return nil
			}
			req.OnMessage(v)
		}
	})
	g.Go(func() error {
		if err := cmd.Wait(); err != nil {
			return fmt.Errorf("worker exited: %w", err)
		}
		return nil
	})
	go func() {
		err := g.Wait()
		if w.terminated.Load() {
			return
		}
		if err == nil {
			err = errors.New("worker exited")
		}
		logger.Error("worker process failed", "pid", cmd.Process.Pid, "err", err)
		req.OnError(&TransportError{Cause: err})
	}()
	return w, nil
}

type processWorker struct {
	cmd        *exec.Cmd
	stdin      io.WriteCloser
	terminated atomic.Bool

	mu     sync.Mutex
	frames *frameWriter
}

func (w *processWorker) Post(msg Value, transfer []*Object) error {
	rec, err := Clone(msg, transfer)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.terminated.Load() {
		return &TransportError{Cause: errTerminated}
	}
	if err := w.frames.writeRecord(rec); err != nil {
		return &TransportError{Cause: err}
	}
	return nil
}

func (w *processWorker) Terminate() error {
	if w.terminated.Swap(true) {
		return nil
	}
	w.kill()
	return nil
}

func (w *processWorker) kill() {
	w.stdin.Close()
	_ = w.cmd.Process.Kill()
}

// ServeProcess is the child side of ProcessHost: it reads the program and
// messages from r and writes replies to w until r is closed or ctx ends.
func ServeProcess(ctx context.Context, r io.Reader, w io.Writer, logger *slog.Logger) error {
	logger = loggerOr(logger)
	frames := newFrameReader(r)
	first, err := frames.next()
	if err != nil {
		return fmt.Errorf("read program: %w", err)
	}
	if first.kind != frameProgram {
		return fmt.Errorf("first frame has kind %d, want program", first.kind)
	}
	iso, err := NewIsolate(first.program, Capabilities{Buffers: true})
	if err != nil {
		return err
	}
	logger.Debug("isolate ready", "program_bytes", len(first.program))

	out := newFrameWriter(w)
	for {
		f, err := frames.next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read message: %w", err)
		}
		if f.kind != frameMessage {
			return fmt.Errorf("unexpected frame kind %d", f.kind)
		}
		reply, err := iso.Handle(ctx, f.record)
		if err != nil {
			return err
		}
		if reply == nil {
			continue
		}
		if err := out.writeRecord(reply); err != nil {
			return fmt.Errorf("write reply: %w", err)
		}
	}
}
