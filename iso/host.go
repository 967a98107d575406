package iso

import "log/slog"

// Host opens isolates. Implementations decide where an isolate runs and what
// can be moved into it; everything else about the protocol is shared.
type Host interface {
	Capabilities() Capabilities
	Spawn(req SpawnRequest) (Worker, error)
}

// SpawnRequest is what a host needs to start one isolate.
type SpawnRequest struct {
	// Realm is the caller realm; replies are revived into it.
	Realm   *Realm
	Program string
	// Init is the first message, delivered before any call.
	Init     Value
	Transfer []*Object
	// OnMessage receives replies in order, never concurrently.
	OnMessage func(Value)
	// OnError reports that the isolate died. It is called at most once and
	// never after Terminate.
	OnError func(error)
	Logger  *slog.Logger
}

// Worker is the caller's end of a running isolate.
type Worker interface {
	// Post snapshots msg, moving the listed values, and queues it. A value
	// that cannot be cloned fails synchronously with a DataCloneError; a
	// dead isolate with a *TransportError.
	Post(msg Value, transfer []*Object) error
	Terminate() error
}

func loggerOr(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
