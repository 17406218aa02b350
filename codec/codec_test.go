package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `json:"name"`
	Image []byte `json:"image,omitempty"`
	Count int    `json:"count"`
}

func TestEncodeNoTrailingNewline(t *testing.T) {
	buf, err := Encode(sample{Name: "<b>", Count: 2})
	require.NoError(t, err)
	require.Equal(t, `{"name":"<b>","count":2}`, string(buf))
}

func TestDecodeFromStream(t *testing.T) {
	var b bytes.Buffer
	_, err := EncodeTo(&b, sample{Name: "a", Image: []byte{1, 2, 3}})
	require.NoError(t, err)

	var got sample
	n, err := DecodeFrom(&b, &got)
	require.NoError(t, err)
	require.Positive(t, n)
	require.Equal(t, sample{Name: "a", Image: []byte{1, 2, 3}}, got)
}

func TestDecodeInvalid(t *testing.T) {
	var got sample
	require.ErrorContains(t, Decode([]byte("{"), &got), "decode from buffer")
}

func TestMustEncodePanics(t *testing.T) {
	require.Panics(t, func() { MustEncode(make(chan int)) })
}
