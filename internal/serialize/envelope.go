package serialize

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/hugr-lab/opal-airport/internal/msgpack"
)

// Envelope is a compressed msgpack payload as the Airport extension
// expects it: a two element array of the uncompressed length and the
// zstd-compressed bytes.
type Envelope struct {
	Body             []byte
	Uncompressed     int
	CompressedLength int
}

// SHA256 is the hex digest of the envelope body.
func (e *Envelope) SHA256() string {
	sum := sha256.Sum256(e.Body)
	return hex.EncodeToString(sum[:])
}

// Pack msgpack-encodes v, compresses it and wraps it in an envelope.
func Pack(v any) (*Envelope, error) {
	uncompressed, err := msgpack.Encode(v)
	if err != nil {
		return nil, err
	}
	compressed, err := CompressCatalog(uncompressed)
	if err != nil {
		return nil, err
	}
	body, err := msgpack.Encode([]any{uint32(len(uncompressed)), string(compressed)})
	if err != nil {
		return nil, err
	}
	return &Envelope{
		Body:             body,
		Uncompressed:     len(uncompressed),
		CompressedLength: len(compressed),
	}, nil
}

// Unpack reverses Pack and returns the uncompressed msgpack payload.
func Unpack(body []byte) ([]byte, error) {
	var wrapper struct {
		_msgpack struct{} `msgpack:",as_array"`
		Length   uint32
		Data     string
	}
	if err := msgpack.Decode(body, &wrapper); err != nil {
		return nil, err
	}

	d, err := NewDecompressor()
	if err != nil {
		return nil, err
	}
	defer d.Close()

	data, err := d.Decompress([]byte(wrapper.Data))
	if err != nil {
		return nil, err
	}
	if len(data) != int(wrapper.Length) {
		return nil, fmt.Errorf("envelope length mismatch: header %d, payload %d", wrapper.Length, len(data))
	}
	return data, nil
}
