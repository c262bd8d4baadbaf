//go:build windows

package export

import (
	stderrors "errors"
	"io/fs"
	"os"

	"github.com/hpungsan/blockcad/internal/errors"
)

// openNoFollow opens path normally. Windows has no O_NOFOLLOW; ValidatePath has
// already rejected symlinks.
func openNoFollow(path string, flag int, perm os.FileMode) (*os.File, error) {
	f, err := os.OpenFile(path, flag, perm)
	if err != nil && flag&os.O_CREATE == 0 && stderrors.Is(err, fs.ErrNotExist) {
		return nil, errors.NewFileNotFound(path)
	}
	return f, err
}
