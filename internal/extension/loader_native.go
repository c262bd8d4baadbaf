//go:build (linux || darwin || freebsd) && cgo

package extension

import (
	stderrors "errors"
	"io/fs"
	"os"
	"plugin"

	"github.com/hpungsan/blockcad/internal/errors"
	"github.com/hpungsan/blockcad/sdk"
)

// NativeLoader opens Go plugins built with -buildmode=plugin.
//
// The Go runtime never unloads a plugin and caches it by path, so loading the
// same path twice returns the first build's entry point.
type NativeLoader struct{}

// Supported reports whether this build can open native plugins.
func (NativeLoader) Supported() bool { return true }

// Load implements Loader.
func (NativeLoader) Load(path string) (sdk.EntryFunc, error) {
	if _, err := os.Stat(path); err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.NewPluginNotFound(path, nil)
		}
		return nil, errors.NewPluginLoadFailed(path, err)
	}

	p, err := plugin.Open(path)
	if err != nil {
		return nil, errors.NewPluginLoadFailed(path, err)
	}

	sym, err := p.Lookup(sdk.EntrySymbol)
	if err != nil {
		return nil, errors.NewPluginSymbolNotFound(path, sdk.EntrySymbol)
	}
	return entryFromSymbol(path, sym)
}
