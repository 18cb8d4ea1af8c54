package app

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed data/catalog.yaml
var builtinCatalog []byte

var (
	ErrVideoNotFound = errors.New("video not found")
	ErrEmptyQuery    = errors.New("empty search query")
)

type Video struct {
	ID          string   `json:"id" yaml:"id"`
	Topic       string   `json:"topic" yaml:"topic"`
	Title       string   `json:"title" yaml:"title"`
	Link        string   `json:"link" yaml:"link"`
	Channel     string   `json:"channel,omitempty" yaml:"channel"`
	Duration    string   `json:"duration,omitempty" yaml:"duration"`
	Views       string   `json:"viewCount,omitempty" yaml:"views"`
	Description string   `json:"description,omitempty" yaml:"description"`
	Thumbnail   string   `json:"thumbnail,omitempty" yaml:"thumbnail"`
	Tags        []string `json:"tags,omitempty" yaml:"tags"`
}

// ShortDescription is the description as shown in listings.
func (v Video) ShortDescription() string {
	return truncateGraphemes(v.Description, descriptionLimit)
}

type catalogFile struct {
	DefaultLink string  `yaml:"default_link"`
	Videos      []Video `yaml:"videos"`
}

// Catalog is the fixed topic -> video table. It is read-only after load.
type Catalog struct {
	defaultLink string
	videos      []Video
	byID        map[string]int
	byTopic     map[string]int
}

// LoadCatalog parses the YAML catalog at path, or the built-in one when
// path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	data := builtinCatalog
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read catalog: %w", err)
		}
		data = b
	}
	return parseCatalog(data)
}

func parseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	c := &Catalog{
		defaultLink: strings.TrimSpace(f.DefaultLink),
		byID:        make(map[string]int, len(f.Videos)),
		byTopic:     make(map[string]int, len(f.Videos)),
	}

	for i, v := range f.Videos {
		v.Link = strings.TrimSpace(v.Link)
		v.Title = strings.TrimSpace(v.Title)
		v.Description = strings.TrimSpace(v.Description)
		if v.ID == "" {
			id, ok := VideoID(v.Link)
			if !ok {
				return nil, fmt.Errorf("catalog entry %d (%q): unsupported link %q", i, v.Title, v.Link)
			}
			v.ID = id
		}
		if v.Thumbnail == "" {
			v.Thumbnail = "https://i.ytimg.com/vi/" + v.ID + "/hqdefault.jpg"
		}
		if _, dup := c.byID[v.ID]; dup {
			return nil, fmt.Errorf("catalog entry %d: duplicate video id %s", i, v.ID)
		}

		c.videos = append(c.videos, v)
		idx := len(c.videos) - 1
		c.byID[v.ID] = idx
		if t := normalizeKey(v.Topic); t != "" {
			if _, dup := c.byTopic[t]; !dup {
				c.byTopic[t] = idx
			}
		}
	}

	if c.defaultLink == "" && len(c.videos) > 0 {
		c.defaultLink = c.videos[0].Link
	}
	return c, nil
}

// DefaultLink is what LookupVideo returns for unknown topics.
func (c *Catalog) DefaultLink() string {
	return c.defaultLink
}

// LookupVideo returns the link registered for topic, or DefaultLink.
func (c *Catalog) LookupVideo(topic string) string {
	if i, ok := c.byTopic[normalizeKey(topic)]; ok {
		return c.videos[i].Link
	}
	return c.defaultLink
}

// FindVideo resolves a video id, a topic or a full link.
func (c *Catalog) FindVideo(key string) (Video, bool) {
	key = strings.TrimSpace(key)
	if key == "" {
		return Video{}, false
	}
	if i, ok := c.byID[key]; ok {
		return c.videos[i], true
	}
	if id, ok := VideoID(key); ok {
		if i, ok := c.byID[id]; ok {
			return c.videos[i], true
		}
	}
	if i, ok := c.byTopic[normalizeKey(key)]; ok {
		return c.videos[i], true
	}
	return Video{}, false
}

// Videos returns a copy of all entries in catalog order.
func (c *Catalog) Videos() []Video {
	out := make([]Video, len(c.videos))
	copy(out, c.videos)
	return out
}

// Topics returns the normalized topic keys in catalog order.
func (c *Catalog) Topics() []string {
	var out []string
	for _, v := range c.videos {
		if t := normalizeKey(v.Topic); t != "" {
			out = append(out, t)
		}
	}
	return out
}
