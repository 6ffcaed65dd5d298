//go:build !linux

package console

import "os"

// IsTerminal is unknown off Linux; callers treat stdin as interactive.
func IsTerminal(f *os.File) bool {
	return f != nil
}
