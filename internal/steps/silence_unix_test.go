//go:build unix

package steps

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// captureStderr points file descriptor 2 at a temp file while fn runs and
// returns what reached it.
func captureStderr(t *testing.T, fn func()) string {
	t.Helper()

	f, err := os.CreateTemp(t.TempDir(), "stderr")
	require.NoError(t, err)
	defer f.Close()

	stderr := int(os.Stderr.Fd())
	saved, err := unix.Dup(stderr)
	require.NoError(t, err)
	require.NoError(t, unix.Dup2(int(f.Fd()), stderr))
	func() {
		defer func() {
			_ = unix.Dup2(saved, stderr)
			_ = unix.Close(saved)
		}()
		fn()
	}()

	out, err := os.ReadFile(f.Name())
	require.NoError(t, err)
	return string(out)
}

func TestSilence(t *testing.T) {
	// Built before Silence runs, like the CLI logger.
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	boom := errors.New("boom")

	out := captureStderr(t, func() {
		fmt.Fprintln(os.Stderr, "before")
		err := Silence(false, func() error {
			log.Info("hidden log line")
			fmt.Fprintln(os.Stderr, "hidden write")
			return boom
		})
		require.ErrorIs(t, err, boom)
		fmt.Fprintln(os.Stderr, "after")

		require.NoError(t, Silence(true, func() error {
			log.Info("shown log line")
			return nil
		}))
	})

	require.Contains(t, out, "before")
	require.Contains(t, out, "after")
	require.Contains(t, out, "shown log line")
	require.NotContains(t, out, "hidden")
}
