package pictures

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinica-central/helpdesk/internal/shared"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "1-abc.png", strings.NewReader("bytes"), 5, "image/png"))
	rc, err := store.Open(ctx, "1-abc.png")
	require.NoError(t, err)
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "bytes", string(b))

	require.NoError(t, store.Remove(ctx, "1-abc.png"))
	assert.ErrorIs(t, store.Remove(ctx, "1-abc.png"), shared.ErrNotFound)
	_, err = store.Open(ctx, "1-abc.png")
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.NoError(t, Purge(ctx, store, "1-abc.png"))
}

func TestExtensionAndContentType(t *testing.T) {
	assert.Equal(t, "jpg", Extension("blob"))
	assert.Equal(t, "png", Extension("Foto.PNG"))
	assert.Equal(t, "jpg", Extension("weird.p$g"))
	assert.Equal(t, "image/webp", ContentType("1-x.webp"))
	assert.Equal(t, "image/gif", ContentType("1-x.gif"))
	assert.Equal(t, "image/jpeg", ContentType("1-x.heic"))
	assert.False(t, ValidFileName("../x.jpg"))
	assert.False(t, ValidFileName(`a\b.jpg`))
	assert.True(t, ValidFileName("1-6f1c.jpg"))
}
