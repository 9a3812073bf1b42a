package engine

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
)

// GGUFMagic is the 4-byte signature at the start of every GGUF model file.
var GGUFMagic = []byte{0x47, 0x47, 0x55, 0x46}

// ErrNotGGUF is returned by CheckMagic when the file signature does not match.
var ErrNotGGUF = errors.New("not a GGUF model file")

// CheckMagic verifies that path names a readable file starting with
// GGUFMagic. No other part of the file is inspected.
func CheckMagic(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return err
	}
	if st.IsDir() {
		return fmt.Errorf("%s: is a directory", path)
	}
	head := make([]byte, len(GGUFMagic))
	if _, err := io.ReadFull(f, head); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("%s: %w", path, ErrNotGGUF)
		}
		return err
	}
	if !bytes.Equal(head, GGUFMagic) {
		return fmt.Errorf("%s: %w", path, ErrNotGGUF)
	}
	return nil
}
