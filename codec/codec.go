// Package codec encodes values persisted by the local store and exchanged with peers.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// Encodable is a value that can be encoded.
type Encodable any

// Decodable is a pointer to a value that can be decoded.
type Decodable any

// EncodeTo encodes value to a writer stream. Encoding is not terminated by a newline.
func EncodeTo(w io.Writer, value Encodable) (int, error) {
	b := getEncoderBuffer()
	defer putEncoderBuffer(b)
	enc := json.NewEncoder(b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(value); err != nil {
		return 0, fmt.Errorf("marshal json: %w", err)
	}
	n, err := w.Write(bytes.TrimSuffix(b.Bytes(), []byte{'\n'}))
	if err != nil {
		return n, fmt.Errorf("write: %w", err)
	}
	return n, nil
}

// DecodeFrom decodes a single value using data from a reader stream.
func DecodeFrom(r io.Reader, value Decodable) (int, error) {
	counter := &countingReader{r: r}
	dec := json.NewDecoder(counter)
	if err := dec.Decode(value); err != nil {
		return counter.n, fmt.Errorf("unmarshal json: %w", err)
	}
	return counter.n, nil
}

var encoderPool = sync.Pool{
	New: func() any {
		b := new(bytes.Buffer)
		b.Grow(256)
		return b
	},
}

func getEncoderBuffer() *bytes.Buffer {
	return encoderPool.Get().(*bytes.Buffer)
}

func putEncoderBuffer(b *bytes.Buffer) {
	b.Reset()
	encoderPool.Put(b)
}

// Encode value to a byte buffer.
func Encode(value Encodable) ([]byte, error) {
	b := getEncoderBuffer()
	defer putEncoderBuffer(b)
	if _, err := EncodeTo(b, value); err != nil {
		return nil, err
	}
	buf := make([]byte, b.Len())
	copy(buf, b.Bytes())
	return buf, nil
}

// MustEncode encodes value and panics on error. Used for values that always encode.
func MustEncode(value Encodable) []byte {
	buf, err := Encode(value)
	if err != nil {
		panic(err)
	}
	return buf
}

// Decode value from a byte buffer.
func Decode(buf []byte, value Decodable) error {
	if err := json.Unmarshal(buf, value); err != nil {
		return fmt.Errorf("decode from buffer: %w", err)
	}
	return nil
}

type countingReader struct {
	r io.Reader
	n int
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += n
	return n, err
}
