package render

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func TestQR_Render(t *testing.T) {
	png, err := NewQR().Render(context.Background(), "t1.o1.e1.c2lnbmF0dXJl", 256)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, pngMagic))
}

func TestQR_RenderDefaultSize(t *testing.T) {
	png, err := NewQR().Render(context.Background(), "t1.o1.e1.sig", 0)
	require.NoError(t, err)
	assert.NotEmpty(t, png)
}

func TestQR_RenderErrors(t *testing.T) {
	_, err := NewQR().Render(context.Background(), "", 256)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewQR().Render(ctx, "t1.o1.e1.sig", 256)
	assert.ErrorIs(t, err, context.Canceled)
}
