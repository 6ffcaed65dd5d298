//go:build !linux || (!arm && !arm64)

package button

import "fmt"

func openLine(cfg Config, onPress func()) (line, error) {
	return nil, fmt.Errorf("button: gpio unsupported on this platform")
}
