// Package backgrounds picks background clips for reels without repeating a
// clip until every clip in its category has been used.
package backgrounds

import (
	"fmt"
	"strings"
)

// Category tags a family of background clips.
type Category string

const (
	CategorySatisfying Category = "satisfying"
	CategoryMinecraft  Category = "minecraft"
	CategorySubway     Category = "subway"
	CategoryGTA        Category = "gta"
	CategoryFortnite   Category = "fortnite"
)

var displayNames = map[Category]string{
	CategorySatisfying: "Satisfying",
	CategoryMinecraft:  "Minecraft",
	CategorySubway:     "Subway Surfers",
	CategoryGTA:        "GTA",
	CategoryFortnite:   "Fortnite",
}

// Categories returns every known category in display order.
func Categories() []Category {
	return []Category{
		CategorySatisfying,
		CategoryMinecraft,
		CategorySubway,
		CategoryGTA,
		CategoryFortnite,
	}
}

// DisplayName returns the human-readable label for c.
func (c Category) DisplayName() string {
	if name, ok := displayNames[c]; ok {
		return name
	}
	return string(c)
}

// ParseCategory normalizes s and checks it against the known categories.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := displayNames[c]; !ok {
		return "", fmt.Errorf("unknown background category %q", s)
	}
	return c, nil
}
