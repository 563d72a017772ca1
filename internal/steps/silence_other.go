//go:build !unix

package steps

import (
	"fmt"
	"os"
)

// Silence runs fn with os.Stderr pointed at the null device, restoring it
// afterwards. With show set, fn runs with the streams untouched.
func Silence(show bool, fn func() error) error {
	if show {
		return fn()
	}

	devNull, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", os.DevNull, err)
	}
	defer devNull.Close()

	onHold := os.Stderr
	os.Stderr = devNull
	defer func() { os.Stderr = onHold }()

	return fn()
}
