package framezip

import (
	"archive/zip"
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackUnpackRoundTrip(t *testing.T) {
	frames := make([][]byte, 25)
	for i := range frames {
		frames[i] = []byte(fmt.Sprintf("frame payload %d", i))
	}

	archive, err := Pack(frames, ".jpg")
	require.NoError(t, err)

	out, err := Unpack(archive)
	require.NoError(t, err)
	assert.Equal(t, frames, out)
}

func TestUnpackSortsByEntryNumber(t *testing.T) {
	// Entries written out of order must still unpack in frame order.
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, i := range []int{2, 0, 1} {
		w, err := zw.Create(fmt.Sprintf("%05d.png", i))
		require.NoError(t, err)
		_, err = w.Write([]byte(fmt.Sprintf("mask %d", i)))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	out, err := Unpack(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, out, 3)
	for i, data := range out {
		assert.Equal(t, fmt.Sprintf("mask %d", i), string(data))
	}
}

func TestPackEmpty(t *testing.T) {
	archive, err := Pack(nil, ".jpg")
	require.NoError(t, err)

	out, err := Unpack(archive)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestUnpackRejectsGarbage(t *testing.T) {
	_, err := Unpack([]byte("not a zip"))
	assert.Error(t, err)
}
