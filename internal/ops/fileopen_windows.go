//go:build windows

package ops

import (
	"os"

	"github.com/hpungsan/sideclip/internal/errors"
)

// openFileNoFollowRead opens a file for reading.
// Windows has no O_NOFOLLOW; ValidateImagePath rejects symlinks before we get here.
func openFileNoFollowRead(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewFileNotFound(path)
		}
		return nil, err
	}
	return f, nil
}
