//go:build !((linux || darwin || freebsd) && cgo)

package extension

import (
	"github.com/hpungsan/blockcad/internal/errors"
	"github.com/hpungsan/blockcad/sdk"
)

// NativeLoader reports PLUGIN_UNSUPPORTED. The Go plugin package needs cgo on
// linux, darwin or freebsd.
type NativeLoader struct{}

// Supported reports whether this build can open native plugins.
func (NativeLoader) Supported() bool { return false }

// Load implements Loader.
func (NativeLoader) Load(path string) (sdk.EntryFunc, error) {
	return nil, errors.NewPluginUnsupported(path)
}
