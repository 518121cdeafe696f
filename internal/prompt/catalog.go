package prompt

import (
	"math/rand/v2"

	"github.com/digkill/prelook/internal/models"
)

const KeepNatural = "Keep Natural"

type Color struct {
	Label string `json:"label"`
	Hex   string `json:"hex"`
}

type Preset struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Gender      string `json:"gender"`
	Category    string `json:"category"`
	Style       string `json:"style"`
	Color       string `json:"color"`
	Description string `json:"description"`
}

// Config turns the preset into a generation config with no highlights.
func (p Preset) Config() models.GenerationConfig {
	return models.GenerationConfig{
		Gender:   p.Gender,
		Category: p.Category,
		Style:    p.Style,
		Color:    p.Color,
	}
}

type Category struct {
	Name   string   `json:"name"`
	Styles []string `json:"styles"`
}

type Gender struct {
	Name       string     `json:"name"`
	Categories []Category `json:"categories"`
}

var genders = []Gender{
	{
		Name: "Men",
		Categories: []Category{
			{Name: "Short", Styles: []string{"Buzz Cut", "High Fade", "Mid Fade", "Low Fade", "Drop Fade", "Skin Fade", "Crew Cut", "Caesar Cut", "Textured Crop", "French Crop", "Ivy League", "Flat Top"}},
			{Name: "Medium", Styles: []string{"Quiff", "Modern Quiff", "Pompadour", "Side Part", "Undercut", "Slicked Back", "Faux Hawk", "Messy Fringe", "Textured Fringe", "Mullet"}},
			{Name: "Long", Styles: []string{"Man Bun", "Top Knot", "Shoulder Length", "Flow", "Wolf Cut", "Surfer", "Dreadlocks"}},
		},
	},
	{
		Name: "Women",
		Categories: []Category{
			{Name: "Short", Styles: []string{"Pixie", "Long Pixie", "Textured Pixie", "Undercut Pixie", "Bob", "French Bob", "Italian Bob", "Box Bob", "Bowl Cut", "Mixie"}},
			{Name: "Medium", Styles: []string{"Lob", "Blunt Lob", "Textured Lob", "Shag", "Modern Shag", "Layered", "Mullet", "Wolf Cut"}},
			{Name: "Long", Styles: []string{"Curtain Bangs", "Beach Waves", "Straight", "Butterfly Cut", "Jellyfish Cut", "V-Cut", "U-Cut", "Waterfall Layers", "Mermaid Waves"}},
			{Name: "Updo", Styles: []string{"Messy Bun", "Space Buns", "Low Bun", "High Bun", "High Ponytail", "Low Ponytail", "Dutch Braids", "French Braids"}},
		},
	},
}

var colors = []Color{
	{Label: KeepNatural, Hex: "transparent"},
	{Label: "Natural Black", Hex: "#1a1a1a"},
	{Label: "Dark Brown", Hex: "#3b2f2f"},
	{Label: "Chestnut", Hex: "#5d4037"},
	{Label: "Caramel", Hex: "#c68e17"},
	{Label: "Honey Blonde", Hex: "#e1c16e"},
	{Label: "Platinum", Hex: "#f5f5f5"},
	{Label: "Auburn", Hex: "#7a3121"},
	{Label: "Copper Red", Hex: "#b94e48"},
	{Label: "Burgundy", Hex: "#800020"},
	{Label: "Silver/Grey", Hex: "#9e9e9e"},
	{Label: "Rose Gold", Hex: "#b76e79"},
	{Label: "Pastel Pink", Hex: "#f8bbd0"},
	{Label: "Midnight Blue", Hex: "#1a237e"},
	{Label: "Emerald Green", Hex: "#50c878"},
	{Label: "Lavender", Hex: "#e6e6fa"},
}

var presets = []Preset{
	{ID: "1", Label: "Business Chic", Gender: "Women", Category: "Medium", Style: "Lob", Color: "Dark Brown", Description: "Professional & Sleek"},
	{ID: "2", Label: "Surfer Vibe", Gender: "Men", Category: "Long", Style: "Flow", Color: "Honey Blonde", Description: "Relaxed & Wavy"},
	{ID: "3", Label: "Parisian", Gender: "Women", Category: "Short", Style: "French Bob", Color: "Natural Black", Description: "Timeless Classic"},
	{ID: "4", Label: "Modern Fade", Gender: "Men", Category: "Short", Style: "High Fade", Color: KeepNatural, Description: "Sharp & Clean"},
}

// Catalog is the browsable set of choices offered to clients.
type Catalog struct {
	Genders []Gender `json:"genders"`
	Colors  []Color  `json:"colors"`
	Presets []Preset `json:"presets"`
}

func DefaultCatalog() Catalog {
	return Catalog{Genders: genders, Colors: colors, Presets: presets}
}

func Presets() []Preset {
	return presets
}

func PresetByID(id string) (Preset, bool) {
	for _, p := range presets {
		if p.ID == id {
			return p, true
		}
	}
	return Preset{}, false
}

// DefaultConfig mirrors the studio's initial selection.
func DefaultConfig() models.GenerationConfig {
	return models.GenerationConfig{Gender: "Women", Category: "Medium", Style: "Layered", Color: KeepNatural}
}

// Suggest picks a random look from the catalog.
func Suggest(rng *rand.Rand) models.GenerationConfig {
	g := genders[rng.IntN(len(genders))]
	c := g.Categories[rng.IntN(len(g.Categories))]
	return models.GenerationConfig{
		Gender:   g.Name,
		Category: c.Name,
		Style:    c.Styles[rng.IntN(len(c.Styles))],
		Color:    colors[rng.IntN(len(colors))].Label,
	}
}

func findCategory(gender, category string) (Category, bool) {
	for _, g := range genders {
		if g.Name != gender {
			continue
		}
		for _, c := range g.Categories {
			if c.Name == category {
				return c, true
			}
		}
	}
	return Category{}, false
}

func isCatalogColor(label string) bool {
	for _, c := range colors {
		if c.Label == label {
			return true
		}
	}
	return false
}
