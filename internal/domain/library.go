package domain

import (
	"sort"
	"strconv"
	"strings"
)

// FreePages are playable without purchase.
var FreePages = []int{1, 2, 3, 4, 5}

// Narrator is a reciter whose audio can be used by listening questions.
type Narrator struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	ItemID string `json:"itemId,omitempty"`
}

// DefaultNarrator is used when a session does not pick one.
const DefaultNarrator = "ar.alafasy"

var freeNarrators = []Narrator{
	{ID: "ar.alafasy", Name: "Mishary Alafasy"},
	{ID: "ar.abdulbasitmurattal", Name: "Abdul Basit (Murattal)"},
}

var purchasableNarrators = []Narrator{
	{ID: "ar.minshawi", Name: "Mohamed Siddiq al-Minshawi", ItemID: "qari_minshawi"},
	{ID: "ar.husary", Name: "Mahmoud Khalil al-Husary", ItemID: "qari_husary"},
	{ID: "ar.sudais", Name: "Abdurrahmaan As-Sudais", ItemID: "qari_sudais"},
}

const pageItemPrefix = "page_"

// AvailablePages returns free pages plus purchased ones, sorted and deduplicated.
func (p Player) AvailablePages() []int {
	seen := make(map[int]struct{}, len(FreePages))
	pages := make([]int, 0, len(FreePages))
	add := func(n int) {
		if _, ok := seen[n]; ok {
			return
		}
		seen[n] = struct{}{}
		pages = append(pages, n)
	}
	for _, n := range FreePages {
		add(n)
	}
	for _, item := range p.Inventory {
		if !strings.HasPrefix(item, pageItemPrefix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(item, pageItemPrefix))
		if err != nil || n <= 0 {
			continue
		}
		add(n)
	}
	sort.Ints(pages)
	return pages
}

// CanPlayPage reports whether a page is free or purchased.
func (p Player) CanPlayPage(page int) bool {
	for _, n := range p.AvailablePages() {
		if n == page {
			return true
		}
	}
	return false
}

// AvailableNarrators returns free narrators followed by purchased ones.
func (p Player) AvailableNarrators() []Narrator {
	out := append([]Narrator(nil), freeNarrators...)
	for _, n := range purchasableNarrators {
		if p.Owns(n.ItemID) {
			out = append(out, n)
		}
	}
	return out
}

// CanUseNarrator reports whether a narrator id is unlocked.
func (p Player) CanUseNarrator(id string) bool {
	for _, n := range p.AvailableNarrators() {
		if n.ID == id {
			return true
		}
	}
	return false
}
