package media

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutStoresAndReturnsURL(t *testing.T) {
	dir := t.TempDir()
	d, err := NewDisk(dir, "/uploads/", 1<<20)
	require.NoError(t, err)

	payload := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("pngbytes"))
	url, err := d.Put(context.Background(), payload)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/uploads/"))
	assert.True(t, strings.HasSuffix(url, ".png"))

	b, err := os.ReadFile(filepath.Join(dir, strings.TrimPrefix(url, "/uploads/")))
	require.NoError(t, err)
	assert.Equal(t, "pngbytes", string(b))
}

func TestPutRejectsOversized(t *testing.T) {
	d, err := NewDisk(t.TempDir(), "/uploads", 8)
	require.NoError(t, err)

	payload := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(make([]byte, 64))
	_, err = d.Put(context.Background(), payload)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestPutRejectsBadPayloads(t *testing.T) {
	d, err := NewDisk(t.TempDir(), "/uploads", 1<<20)
	require.NoError(t, err)
	ctx := context.Background()

	for _, bad := range []string{
		"",
		"nonsense",
		"data:image/png;base64,", // empty body
		"data:text/plain;base64," + base64.StdEncoding.EncodeToString([]byte("x")),
		"data:image/png;base64,###not-base64###",
	} {
		_, err := d.Put(ctx, bad)
		assert.ErrorIs(t, err, ErrBadImage, "payload %q", bad)
	}
}
