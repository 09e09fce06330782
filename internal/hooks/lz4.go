package hooks

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
)

// LZ4 compresses payloads into LZ4 frames. Resume data and response bodies
// are often highly compressible, and stacking LZ4 before encryption keeps the
// on-disk footprint small.
type LZ4 struct {
	Level lz4.CompressionLevel
}

// Empty input maps to empty output in both directions; no frame is written.
func (l LZ4) Encrypt(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return []byte{}, nil
	}
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if l.Level != 0 {
		if err := w.Apply(lz4.CompressionLevelOption(l.Level)); err != nil {
			return nil, fmt.Errorf("lz4 options: %w", err)
		}
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("lz4 close: %w", err)
	}
	return buf.Bytes(), nil
}

func (l LZ4) Decrypt(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return []byte{}, nil
	}
	out, err := io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
	if err != nil {
		return nil, fmt.Errorf("lz4 decompress: %w", err)
	}
	return out, nil
}
