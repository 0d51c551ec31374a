//go:build !windows && !linux && !darwin && !freebsd && !netbsd && !openbsd

package debug

func readRSS() (uint64, error) { return 0, errRSSUnsupported }
