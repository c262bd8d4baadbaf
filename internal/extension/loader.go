// Package extension loads externally compiled plugins and runs their entry point
// against the live scene through the capability table.
package extension

import (
	"fmt"
	"sync"

	"github.com/hpungsan/blockcad/internal/errors"
	"github.com/hpungsan/blockcad/sdk"
)

// Loader resolves a module path to its entry point.
//
// Implementations return a *errors.CADError with one of the PLUGIN_* codes so
// callers can tell a missing module from a missing or mistyped symbol.
type Loader interface {
	Load(path string) (sdk.EntryFunc, error)
}

// StaticLoader serves entry points registered in-process. It backs the built-in
// generators and lets tests drive the runtime without building shared objects.
type StaticLoader struct {
	mu      sync.RWMutex
	entries map[string]any
}

// NewStaticLoader returns an empty StaticLoader.
func NewStaticLoader() *StaticLoader {
	return &StaticLoader{entries: make(map[string]any)}
}

// Register binds path to fn. fn is stored as given and checked against the
// entry signature on Load, mirroring what a native module lookup does.
func (l *StaticLoader) Register(path string, fn any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[path] = fn
}

// Load implements Loader.
func (l *StaticLoader) Load(path string) (sdk.EntryFunc, error) {
	l.mu.RLock()
	sym, ok := l.entries[path]
	l.mu.RUnlock()
	if !ok {
		return nil, errors.NewPluginNotFound(path, nil)
	}
	if sym == nil {
		return nil, errors.NewPluginSymbolNotFound(path, sdk.EntrySymbol)
	}
	return entryFromSymbol(path, sym)
}

// Paths returns the registered paths.
func (l *StaticLoader) Paths() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, len(l.entries))
	for p := range l.entries {
		out = append(out, p)
	}
	return out
}

// entryFromSymbol asserts sym to the entry signature.
func entryFromSymbol(path string, sym any) (sdk.EntryFunc, error) {
	switch fn := sym.(type) {
	case func(*[]sdk.Block, sdk.Host):
		if fn == nil {
			return nil, errors.NewPluginSymbolNotFound(path, sdk.EntrySymbol)
		}
		return fn, nil
	case *func(*[]sdk.Block, sdk.Host):
		// Exported variables of function type come back as pointers.
		if fn == nil || *fn == nil {
			return nil, errors.NewPluginSymbolNotFound(path, sdk.EntrySymbol)
		}
		return *fn, nil
	default:
		return nil, errors.NewPluginBadSignature(path, sdk.EntrySymbol, fmt.Sprintf("%T", sym))
	}
}

// Chain tries each loader in order and returns the first success. When every
// loader fails, the first error that is not PLUGIN_NOT_FOUND wins, so a real
// symbol problem is not hidden behind a later loader's miss.
type Chain []Loader

// Load implements Loader.
func (c Chain) Load(path string) (sdk.EntryFunc, error) {
	var firstErr, notFound error
	for _, l := range c {
		fn, err := l.Load(path)
		if err == nil {
			return fn, nil
		}
		if errors.Is(err, errors.ErrPluginNotFound) {
			if notFound == nil {
				notFound = err
			}
			continue
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	if notFound != nil {
		return nil, notFound
	}
	return nil, errors.NewPluginNotFound(path, nil)
}
