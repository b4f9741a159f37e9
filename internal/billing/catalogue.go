package billing

import (
	"fmt"
	"sort"
)

// Pack is a purchasable minute-pack offer.
type Pack struct {
	Type       string `yaml:"type" json:"type"`
	Minutes    int    `yaml:"minutes" json:"minutes"`
	PriceCents int64  `yaml:"price_cents" json:"price_cents"`
}

// Catalogue indexes the purchasable packs by type.
type Catalogue struct {
	Currency string
	packs    map[string]Pack
}

// DefaultPacks is the standard offer: 5, 15 and 30 minutes at €3 per minute.
func DefaultPacks() []Pack {
	return []Pack{
		{Type: "5", Minutes: 5, PriceCents: 1500},
		{Type: "15", Minutes: 15, PriceCents: 4500},
		{Type: "30", Minutes: 30, PriceCents: 9000},
	}
}

func NewCatalogue(currency string, packs []Pack) (*Catalogue, error) {
	if currency == "" {
		return nil, fmt.Errorf("catalogue: empty currency")
	}
	c := &Catalogue{Currency: currency, packs: make(map[string]Pack, len(packs))}
	for _, p := range packs {
		if p.Type == "" || p.Minutes <= 0 || p.PriceCents <= 0 {
			return nil, fmt.Errorf("catalogue: invalid pack %+v", p)
		}
		if _, dup := c.packs[p.Type]; dup {
			return nil, fmt.Errorf("catalogue: duplicate pack type %q", p.Type)
		}
		c.packs[p.Type] = p
	}
	return c, nil
}

func (c *Catalogue) Lookup(packType string) (Pack, bool) {
	p, ok := c.packs[packType]
	return p, ok
}

// Packs returns the offers sorted by minutes.
func (c *Catalogue) Packs() []Pack {
	out := make([]Pack, 0, len(c.packs))
	for _, p := range c.packs {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Minutes < out[j].Minutes })
	return out
}
