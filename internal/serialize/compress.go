package serialize

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Compressor wraps a reusable ZStandard encoder.
type Compressor struct {
	encoder *zstd.Encoder
}

// NewCompressor creates a compressor at the default level.
// Caller must call Close().
func NewCompressor() (*Compressor, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	return &Compressor{encoder: encoder}, nil
}

// Compress is safe for concurrent use.
func (c *Compressor) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return []byte{}, nil
	}
	return c.encoder.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
}

func (c *Compressor) Close() error {
	if c.encoder != nil {
		return c.encoder.Close()
	}
	return nil
}

// Decompressor wraps a reusable ZStandard decoder.
type Decompressor struct {
	decoder *zstd.Decoder
}

// NewDecompressor creates a decompressor. Caller must call Close().
func NewDecompressor() (*Decompressor, error) {
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &Decompressor{decoder: decoder}, nil
}

// Decompress is safe for concurrent use.
func (d *Decompressor) Decompress(compressed []byte) ([]byte, error) {
	if len(compressed) == 0 {
		return []byte{}, nil
	}
	decompressed, err := d.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress: %w", err)
	}
	return decompressed, nil
}

func (d *Decompressor) Close() {
	if d.decoder != nil {
		d.decoder.Close()
	}
}
