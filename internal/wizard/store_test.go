package wizard

import (
	"testing"

	"pasarmalam/internal/model"

	"github.com/stretchr/testify/assert"
)

func draftTitled(title string) model.DraftListing {
	d := model.NewDraft(model.ListingTypeSell)
	d.Title = title
	return d
}

func TestStore_SetPrice(t *testing.T) {
	s := &Store{}
	d := draftTitled("Catan")
	d.Price = "50"
	s.Append(d)

	tests := []struct {
		name      string
		raw       string
		wantOK    bool
		wantPrice string
	}{
		{"非数字保持原值", "12a", false, "50"},
		{"纯数字", "120", true, "120"},
		{"负号不接受", "-5", false, "120"},
		{"小数不接受", "1.5", false, "120"},
		{"空串清空", "", true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantOK, s.SetPrice(0, tt.raw))
			got, _ := s.At(0)
			assert.Equal(t, tt.wantPrice, got.Price)
		})
	}

	assert.False(t, s.SetPrice(5, "10"), "越界下标")
}

func TestStore_ReplaceAtInvalidIndexIsNoop(t *testing.T) {
	s := &Store{}
	s.Append(draftTitled("Catan"))

	assert.False(t, s.ReplaceAt(1, draftTitled("Azul")))
	assert.False(t, s.ReplaceAt(-1, draftTitled("Azul")))
	assert.Equal(t, 1, s.Len())

	assert.True(t, s.ReplaceAt(0, draftTitled("Azul")))
	got, _ := s.At(0)
	assert.Equal(t, "Azul", got.Title)
	assert.Equal(t, 1, s.Len())
}

func TestStore_RemoveAtKeepsOrder(t *testing.T) {
	s := &Store{}
	for _, title := range []string{"A", "B", "C"} {
		s.Append(draftTitled(title))
	}

	empty, ok := s.RemoveAt(1)
	assert.True(t, ok)
	assert.False(t, empty)

	titles := []string{}
	for _, d := range s.Items() {
		titles = append(titles, d.Title)
	}
	assert.Equal(t, []string{"A", "C"}, titles)

	_, ok = s.RemoveAt(9)
	assert.False(t, ok)

	s.RemoveAt(0)
	empty, ok = s.RemoveAt(0)
	assert.True(t, ok)
	assert.True(t, empty)
}

func TestStore_ItemsAreCopies(t *testing.T) {
	s := &Store{}
	d := draftTitled("Catan")
	d.Images = []string{"a.jpg"}
	s.Append(d)

	got := s.Items()
	got[0].Images[0] = "changed.jpg"

	again, _ := s.At(0)
	assert.Equal(t, "a.jpg", again.Images[0])
}
