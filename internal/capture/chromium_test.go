package capture

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsDefaults(t *testing.T) {
	o := Options{URL: "http://127.0.0.1:8080/widgets/1", OutputPath: "/tmp/1.png"}
	require.NoError(t, o.normalize())
	assert.Equal(t, DefaultWidth, o.Width)
	assert.Equal(t, DefaultHeight, o.Height)
	assert.Equal(t, DefaultTimeout, o.Timeout)
}

func TestWidgetPNGRequiresTarget(t *testing.T) {
	err := WidgetPNG(context.Background(), Options{OutputPath: "/tmp/x.png"})
	assert.ErrorContains(t, err, "URL is required")

	err = WidgetPNG(context.Background(), Options{URL: "http://127.0.0.1/"})
	assert.ErrorContains(t, err, "OutputPath is required")
}
