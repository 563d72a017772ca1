//go:build unix

package steps

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Silence runs fn with file descriptor 2 pointed at the null device, so
// server notices and anything else holding stderr stay quiet. With show set,
// fn runs with the streams untouched.
func Silence(show bool, fn func() error) error {
	if show {
		return fn()
	}

	devNull, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", os.DevNull, err)
	}
	defer devNull.Close()

	stderr := int(os.Stderr.Fd())
	onHold, err := unix.Dup(stderr)
	if err != nil {
		return fmt.Errorf("duplicate stderr: %w", err)
	}
	defer unix.Close(onHold)

	if err := unix.Dup2(int(devNull.Fd()), stderr); err != nil {
		return fmt.Errorf("redirect stderr: %w", err)
	}
	defer unix.Dup2(onHold, stderr)

	return fn()
}
