//go:build linux && (arm || arm64)

package button

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/warthog618/go-gpiocdev"
)

// openLine requests the BCM GPIO as a pulled-up input and calls onPress on
// every debounced falling edge, i.e. the button shorting the line to ground.
func openLine(cfg Config, onPress func()) (line, error) {
	if cfg.Pin <= 0 {
		return nil, fmt.Errorf("button: invalid gpio pin %d", cfg.Pin)
	}

	// On Pi, line names are commonly "GPIO17", etc.
	lineName := fmt.Sprintf("GPIO%d", cfg.Pin)

	chipCandidates := []string{filepath.Join("/dev", cfg.Chip)}
	entries, _ := os.ReadDir("/dev")
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, "gpiochip") && name != cfg.Chip {
			chipCandidates = append(chipCandidates, filepath.Join("/dev", name))
		}
	}

	handler := func(evt gpiocdev.LineEvent) {
		if evt.Type == gpiocdev.LineEventFallingEdge {
			onPress()
		}
	}

	for _, chipPath := range chipCandidates {
		chip, err := gpiocdev.NewChip(chipPath)
		if err != nil {
			continue
		}
		offset, err := chip.FindLine(lineName)
		if err != nil {
			_ = chip.Close()
			continue
		}
		l, err := chip.RequestLine(offset,
			gpiocdev.AsInput,
			gpiocdev.WithPullUp,
			gpiocdev.WithFallingEdge,
			gpiocdev.WithDebounce(cfg.Debounce),
			gpiocdev.WithEventHandler(handler),
			gpiocdev.WithConsumer("gravitylevel-button"),
		)
		if err != nil {
			_ = chip.Close()
			continue
		}
		return &gpiodLine{chip: chip, line: l}, nil
	}

	return nil, fmt.Errorf("button: gpio line %q not found (or busy)", lineName)
}

type gpiodLine struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

func (g *gpiodLine) Close() error {
	if g == nil || g.line == nil {
		return nil
	}
	err := g.line.Close()
	g.line = nil
	if g.chip != nil {
		_ = g.chip.Close()
		g.chip = nil
	}
	return err
}
