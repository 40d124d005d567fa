// Package playlist provides the default playlist document.
package playlist

import (
	"math/rand/v2"
	"strings"
)

// Playlist is a named list of loadable items, usually URLs or search queries.
type Playlist struct {
	Name    string
	Items   []string
	Shuffle bool
}

// ItemError describes an item that could not be resolved.
type ItemError struct {
	Index  int
	Item   string
	Reason string
}

// Parse reads the text format: one item per line, lines starting with
// "#" or "//" are comments, and a "#shuffle" line requests shuffling.
func Parse(name, text string) *Playlist {
	p := &Playlist{Name: name}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			if strings.EqualFold(strings.TrimSpace(strings.TrimLeft(line, "#/")), "shuffle") {
				p.Shuffle = true
			}
			continue
		}
		p.Items = append(p.Items, line)
	}
	return p
}

// Ordered returns the items in play order, shuffled when requested.
func (p *Playlist) Ordered() []string {
	items := make([]string, len(p.Items))
	copy(items, p.Items)
	if p.Shuffle {
		rand.Shuffle(len(items), func(i, j int) {
			items[i], items[j] = items[j], items[i]
		})
	}
	return items
}

// Empty reports whether the playlist has no items.
func (p *Playlist) Empty() bool {
	return p == nil || len(p.Items) == 0
}
