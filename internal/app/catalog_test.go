package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCatalogBuiltin(t *testing.T) {
	c, err := LoadCatalog("")
	require.NoError(t, err)

	assert.Equal(t, "https://www.youtube.com/watch?v=rfscVS0vtbw", c.DefaultLink())
	assert.Len(t, c.Videos(), 7)

	v, ok := c.FindVideo(pythonVideoID)
	require.True(t, ok)
	assert.Equal(t, "python", v.Topic)
	assert.Equal(t, "https://i.ytimg.com/vi/rfscVS0vtbw/hqdefault.jpg", v.Thumbnail)
}

func TestLookupVideo(t *testing.T) {
	c, err := LoadCatalog("")
	require.NoError(t, err)

	tests := []struct {
		topic string
		want  string
	}{
		{"python", "https://www.youtube.com/watch?v=rfscVS0vtbw"},
		{"  Machine   LEARNING ", "https://www.youtube.com/watch?v=i_LwzRVP7bg"},
		{"sql", "https://www.youtube.com/watch?v=HXV3zeQKqGY"},
		{"cobol", c.DefaultLink()},
		{"", c.DefaultLink()},
	}
	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			assert.Equal(t, tt.want, c.LookupVideo(tt.topic))
		})
	}
}

func TestFindVideoByLinkAndTopic(t *testing.T) {
	c, err := LoadCatalog("")
	require.NoError(t, err)

	v, ok := c.FindVideo("https://youtu.be/8DvywoWv6fI")
	require.True(t, ok)
	assert.Equal(t, "python for everybody", v.Topic)

	v, ok = c.FindVideo("SQL")
	require.True(t, ok)
	assert.Equal(t, sqlVideoID, v.ID)

	_, ok = c.FindVideo("nope")
	assert.False(t, ok)
}

func TestVideosReturnsCopy(t *testing.T) {
	c, err := LoadCatalog("")
	require.NoError(t, err)

	vs := c.Videos()
	vs[0].Title = "changed"
	assert.NotEqual(t, "changed", c.Videos()[0].Title)
}

func TestParseCatalogErrors(t *testing.T) {
	_, err := parseCatalog([]byte("videos:\n  - topic: x\n    title: X\n    link: https://example.com/x\n"))
	assert.ErrorContains(t, err, "unsupported link")

	dup := `videos:
  - topic: a
    title: A
    link: https://youtu.be/abc
  - topic: b
    title: B
    link: https://www.youtube.com/watch?v=abc
`
	_, err = parseCatalog([]byte(dup))
	assert.ErrorContains(t, err, "duplicate video id abc")

	_, err = parseCatalog([]byte("videos: ["))
	assert.Error(t, err)
}

func TestLoadCatalogFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`videos:
  - topic: Rust
    title: Rust Course
    link: https://youtu.be/zF34dRivLOw
`), 0644))

	c, err := LoadCatalog(path)
	require.NoError(t, err)
	// default falls back to the first entry
	assert.Equal(t, "https://youtu.be/zF34dRivLOw", c.DefaultLink())
	assert.Equal(t, []string{"rust"}, c.Topics())

	_, err = LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
