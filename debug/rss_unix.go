//go:build darwin || freebsd || netbsd || openbsd

package debug

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// readRSS returns the peak resident set size; these platforms expose no
// cheap current reading.
func readRSS() (uint64, error) {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return 0, err
	}
	if runtime.GOOS == "darwin" {
		return uint64(ru.Maxrss), nil
	}
	return uint64(ru.Maxrss) * 1024, nil
}
