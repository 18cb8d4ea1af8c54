package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVideoID(t *testing.T) {
	tests := []struct {
		link string
		id   string
		ok   bool
	}{
		{"https://www.youtube.com/watch?v=rfscVS0vtbw", "rfscVS0vtbw", true},
		{"https://youtube.com/watch?v=rfscVS0vtbw&t=42s", "rfscVS0vtbw", true},
		{"https://m.youtube.com/watch?v=rfscVS0vtbw", "rfscVS0vtbw", true},
		{"https://youtu.be/8DvywoWv6fI", "8DvywoWv6fI", true},
		{"https://youtu.be/8DvywoWv6fI?si=abc", "8DvywoWv6fI", true},
		{"https://www.youtube.com/embed/W8KRzm-HUcc", "W8KRzm-HUcc", true},
		{"https://www.youtube.com/v/W8KRzm-HUcc", "W8KRzm-HUcc", true},
		{"https://www.youtube.com/shorts/abc_DEF-123", "abc_DEF-123", true},
		{"https://www.youtube.com/watch", "", false},
		{"https://www.youtube.com/playlist?list=PL123", "", false},
		{"https://vimeo.com/12345", "", false},
		{"https://youtu.be/", "", false},
		{"https://youtu.be/<script>", "", false},
		{"rfscVS0vtbw", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.link, func(t *testing.T) {
			id, ok := VideoID(tt.link)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.id, id)
		})
	}
}

func TestEmbedURL(t *testing.T) {
	assert.Equal(t, "https://www.youtube.com/embed/rfscVS0vtbw", EmbedURL("rfscVS0vtbw"))
}
