// Package prompt turns a generation config into the text sent to the image model.
package prompt

import (
	"errors"
	"fmt"
	"regexp"
	"slices"

	"github.com/digkill/prelook/internal/models"
)

var ErrInvalidConfig = errors.New("invalid generation config")

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Build returns the style prompt for cfg. Equal configs always produce equal prompts.
func Build(cfg models.GenerationConfig) string {
	return fmt.Sprintf("A %s hairstyle. %s cut, %s length. %s Professional salon look.",
		cfg.Gender, cfg.Style, cfg.Category, colorClause(cfg))
}

// Summary is the short label shown next to a look, e.g. "Women, Lob, Dark Brown".
func Summary(cfg models.GenerationConfig) string {
	return fmt.Sprintf("%s, %s, %s", cfg.Gender, cfg.Style, cfg.Color)
}

func colorClause(cfg models.GenerationConfig) string {
	c, h := cfg.Color, cfg.HighlightIntensity
	if c != KeepNatural {
		if h > 0 {
			return fmt.Sprintf("Add %s colored highlights/strands to the hair (balayage style). Highlight Intensity: %d%%. Base color remains natural or blends lightly.", c, h)
		}
		return fmt.Sprintf("Dye hair color %s.", c)
	}
	clause := "Keep the original hair color."
	if h > 0 {
		clause += fmt.Sprintf(" Add subtle natural highlights, intensity %d%%.", h)
	}
	return clause
}

// Validate checks cfg against the catalog. Custom colors must be #rrggbb.
func Validate(cfg models.GenerationConfig) error {
	cat, ok := findCategory(cfg.Gender, cfg.Category)
	if !ok {
		return fmt.Errorf("%w: unknown gender/length %q/%q", ErrInvalidConfig, cfg.Gender, cfg.Category)
	}
	if !slices.Contains(cat.Styles, cfg.Style) {
		return fmt.Errorf("%w: unknown style %q", ErrInvalidConfig, cfg.Style)
	}
	if cfg.CustomColor {
		if !hexColor.MatchString(cfg.Color) {
			return fmt.Errorf("%w: custom color must be #rrggbb", ErrInvalidConfig)
		}
	} else if !isCatalogColor(cfg.Color) {
		return fmt.Errorf("%w: unknown color %q", ErrInvalidConfig, cfg.Color)
	}
	if cfg.HighlightIntensity < 0 || cfg.HighlightIntensity > 100 {
		return fmt.Errorf("%w: highlight intensity must be 0-100", ErrInvalidConfig)
	}
	return nil
}
