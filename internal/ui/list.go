package ui

import (
	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/lyx/internal/models"
)

var _ list.Item = artistItem{}

// artistItem wraps an input artist name to implement [list.Item].
type artistItem struct {
	name      string
	processed bool
}

func (i artistItem) FilterValue() string { return i.name }
func (i artistItem) Title() string       { return i.name }
func (i artistItem) Description() string {
	if i.processed {
		return "processed, will be skipped"
	}
	return "pending"
}

// artistItems builds list items for artists, flagging the ones in processed. Returns the pending count.
func artistItems(artists []string, processed models.ArtistSet) ([]list.Item, int) {
	items := make([]list.Item, len(artists))
	pending := 0
	for i, name := range artists {
		done := processed.Has(name)
		if !done {
			pending++
		}
		items[i] = artistItem{name: name, processed: done}
	}
	return items, pending
}
