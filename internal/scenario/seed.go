package scenario

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteSeedFile fills path with deterministic content derived from seed. The
// payload is a cheap integer hash so repeated runs and different hosts
// produce byte-identical template repositories.
func WriteSeedFile(path string, seed, lines int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	for i := 1; i <= lines; i++ {
		payload := uint32(seed)*1315423911 + uint32(i)*2654435761
		if _, err := fmt.Fprintf(f, "seed=%08d line=%04d payload=%08x\n", seed, i, payload); err != nil {
			return err
		}
	}
	return nil
}

// AppendLine appends a single line to path, creating it if needed.
func AppendLine(path, line string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = fmt.Fprintln(f, line)
	return err
}
