// Package applog attributes log output to the location a goroutine is
// currently processing, so a run over many counties produces both one
// combined log and one per-location log file an operator can hand to
// whoever owns that county's result.
//
// The original threads a location name through asyncio's current-task
// name and a logging.Filter that inspects it at emit time. Go has no
// analogous per-goroutine identity, so this package carries the location
// tag explicitly on context.Context instead, and hands callers a
// concrete *zerolog.Logger value scoped to that location rather than
// filtering a shared logger's output after the fact.
package applog

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

type locationKey struct{}

// WithLocation returns a context tagged with location, so that a logger
// obtained from Listener.Logger(ctx) further down the call chain is
// automatically scoped to it.
func WithLocation(ctx context.Context, location string) context.Context {
	return context.WithValue(ctx, locationKey{}, location)
}

// LocationFromContext returns the location tag carried by ctx, if any.
func LocationFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(locationKey{}).(string)
	return v, ok && v != ""
}

// Listener is the run-wide log sink: one combined logger (console plus a
// main.log under Dir) plus a registry of per-location loggers opened by
// EnterLocation. It mirrors the original's LogListener, minus the
// queue/filter machinery that a shared *zerolog.Logger doesn't need.
type Listener struct {
	Dir string

	console  io.Writer
	mainFile *os.File
	main     zerolog.Logger

	mu     sync.Mutex
	scopes map[string]*LocationScope
}

// NewListener creates Dir if needed, opens main.log inside it, and
// returns a Listener whose combined logger writes to both console and
// that file.
func NewListener(dir string, console io.Writer) (*Listener, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("applog: create log dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, "main.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("applog: open main.log: %w", err)
	}
	l := &Listener{
		Dir:      dir,
		console:  console,
		mainFile: f,
		scopes:   make(map[string]*LocationScope),
	}
	l.main = zerolog.New(zerolog.MultiLevelWriter(console, f)).With().Timestamp().Logger()
	return l, nil
}

// Logger returns the logger scoped to ctx's location tag, or the combined
// main logger if ctx carries no location or that location has no open
// scope. A record written through it lands in main.log either way, plus
// the location's own file when a scope is open.
func (l *Listener) Logger(ctx context.Context) *zerolog.Logger {
	loc, ok := LocationFromContext(ctx)
	if !ok {
		return &l.main
	}
	l.mu.Lock()
	scope, ok := l.scopes[loc]
	l.mu.Unlock()
	if !ok {
		return &l.main
	}
	return &scope.logger
}

// Close closes main.log. Callers should have already closed every
// LocationScope they opened.
func (l *Listener) Close() error {
	return l.mainFile.Close()
}

// LocationScope is one location's dedicated log file, open for the
// duration of that location's process_location run.
type LocationScope struct {
	location string
	file     *os.File
	logger   zerolog.Logger
	listener *Listener
}

// EnterLocation opens <Dir>/<location>.log, registers a logger for it
// that also feeds the combined main.log/console stream, and returns a
// context tagged so that Listener.Logger(ctx) resolves to it. The
// returned LocationScope must be closed when the location's processing
// finishes; closing it deregisters the location (Logger then falls back
// to the main logger for that location again) and closes the file.
func (l *Listener) EnterLocation(ctx context.Context, location string) (context.Context, *LocationScope, error) {
	fileName := sanitizeFileName(location) + ".log"
	f, err := os.OpenFile(filepath.Join(l.Dir, fileName), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return ctx, nil, fmt.Errorf("applog: open location log for %q: %w", location, err)
	}
	scope := &LocationScope{
		location: location,
		file:     f,
		listener: l,
		logger: zerolog.New(zerolog.MultiLevelWriter(l.console, l.mainFile, f)).With().
			Timestamp().Str("location", location).Logger(),
	}
	l.mu.Lock()
	l.scopes[location] = scope
	l.mu.Unlock()
	return WithLocation(ctx, location), scope, nil
}

// Close deregisters the scope and closes its log file.
func (s *LocationScope) Close() error {
	s.listener.mu.Lock()
	delete(s.listener.scopes, s.location)
	s.listener.mu.Unlock()
	return s.file.Close()
}

// Logger returns this scope's logger directly, for callers that already
// hold the LocationScope rather than a tagged context.
func (s *LocationScope) Logger() *zerolog.Logger { return &s.logger }

// SanitizeFileName exposes sanitizeFileName for callers outside this
// package that derive a per-location file name the same way (e.g.
// internal/pipeline's cleaned-text output files).
func SanitizeFileName(location string) string { return sanitizeFileName(location) }

// sanitizeFileName replaces path separators in a location name ("Story
// County, Iowa") so it can be used as a single path component.
func sanitizeFileName(location string) string {
	r := make([]rune, 0, len(location))
	for _, c := range location {
		switch c {
		case '/', '\\', ':':
			r = append(r, '_')
		default:
			r = append(r, c)
		}
	}
	return string(r)
}
