package qr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

func TestCharsetEncode(t *testing.T) {
	latin2, err := CharsetISO88592.encode("Črnuče")
	require.NoError(t, err)
	assert.Equal(t, "\xc8rnu\xe8e", latin2)

	// Without an ECI header a Latin-1 reader decodes the same bytes.
	latin1, err := charmap.ISO8859_1.NewDecoder().String(latin2)
	require.NoError(t, err)
	assert.Equal(t, "Èrnuèe", latin1)

	utf8, err := CharsetUTF8.encode("Črnuče")
	require.NoError(t, err)
	assert.Equal(t, "Črnuče", utf8)
}
