package utils

import (
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 1x1 PNG
const tinyPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII="

func TestTTLCache_Expiry(t *testing.T) {
	c := NewTTLCache[string](time.Minute)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("k", "v")
	v, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get("k")
	assert.False(t, ok, "过期后不应命中")

	c.Set("a", "1")
	c.Set("b", "2")
	now = now.Add(2 * time.Minute)
	assert.Equal(t, 2, c.Purge())
}

func TestDecodeImagePayload(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		wantMime string
		wantErr  error
	}{
		{"data URL", "data:image/png;base64," + tinyPNG, "image/png", nil},
		{"裸 base64", tinyPNG, "image/png", nil},
		{"文本不是图片", base64.StdEncoding.EncodeToString([]byte("hello world")), "", ErrNotImage},
		{"空内容", "", "", ErrNotImage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, mime, err := DecodeImagePayload(tt.payload)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMime, mime)
			assert.NotEmpty(t, data)
		})
	}
}

func TestSplitDataURL(t *testing.T) {
	mime, data := SplitDataURL("data:image/jpeg;base64,AAAA")
	assert.Equal(t, "image/jpeg", mime)
	assert.Equal(t, "AAAA", data)

	mime, data = SplitDataURL("https://cf.geekdo-images.com/x.jpg")
	assert.Empty(t, mime)
	assert.Equal(t, "https://cf.geekdo-images.com/x.jpg", data)
}

func TestStripHTML(t *testing.T) {
	in := "Trade, build,<br/>settle &amp;#10;the <b>island</b> of Catan."
	assert.Equal(t, "Trade, build, settle the island of Catan.", StripHTML(in))
	assert.Equal(t, "abc", Truncate("abcdef", 3))
	assert.Equal(t, "ab", Truncate("ab", 3))
}
