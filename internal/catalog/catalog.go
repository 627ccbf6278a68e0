// Package catalog holds the static item table the extraction engine resolves
// localized names against. The table ships embedded; the service never
// mutates it.
package catalog

import (
	"embed"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed data/items.yaml
var itemsYAML embed.FS

// Material ids occupy a fixed numeric range in the source game data.
const (
	materialIDMin = 30000
	materialIDMax = 32000
)

// Item is one catalog entry.
type Item struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"` // localized (zh) name, the wiki's link text
	Tier   int    `yaml:"tier"`
	SortID int    `yaml:"sort"`

	// variants holds stylistic spellings of Name (interpunct/hyphen/width
	// substitutions), computed once at load.
	variants []string
}

// Variants returns every stylistic spelling of the item's name, the name
// itself first.
func (it *Item) Variants() []string { return it.variants }

type itemFile struct {
	Items []Item `yaml:"items"`
}

// Catalog indexes items by id and by exact localized name.
type Catalog struct {
	items  []*Item
	byID   map[string]*Item
	byName map[string]*Item
}

// Load parses the embedded item table.
func Load() (*Catalog, error) {
	data, err := itemsYAML.ReadFile("data/items.yaml")
	if err != nil {
		return nil, fmt.Errorf("catalog: reading embedded items: %w", err)
	}
	var f itemFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("catalog: parsing items: %w", err)
	}
	return New(f.Items), nil
}

// New builds a catalog from an explicit item list. Used by tests.
func New(items []Item) *Catalog {
	c := &Catalog{
		byID:   make(map[string]*Item, len(items)),
		byName: make(map[string]*Item, len(items)),
	}
	for i := range items {
		it := items[i]
		it.variants = nameVariants(it.Name)
		c.items = append(c.items, &it)
		c.byID[it.ID] = &it
		c.byName[it.Name] = &it
	}
	return c
}

// ByName resolves an exact localized name.
func (c *Catalog) ByName(name string) (*Item, bool) {
	it, ok := c.byName[name]
	return it, ok
}

// ByID resolves an item id.
func (c *Catalog) ByID(id string) (*Item, bool) {
	it, ok := c.byID[id]
	return it, ok
}

// MaterialByName resolves an exact localized name restricted to the material
// id range and, when tier > 0, to that tier.
func (c *Catalog) MaterialByName(name string, tier int) (*Item, bool) {
	it, ok := c.byName[name]
	if !ok || !IsMaterialID(it.ID) {
		return nil, false
	}
	if tier > 0 && it.Tier != tier {
		return nil, false
	}
	return it, true
}

// Items returns all entries in load order.
func (c *Catalog) Items() []*Item { return c.items }

// IsMaterialID reports whether id falls in the numeric material range.
func IsMaterialID(id string) bool {
	n, err := strconv.Atoi(id)
	if err != nil {
		return false
	}
	return n >= materialIDMin && n < materialIDMax
}
