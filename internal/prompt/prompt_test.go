package prompt

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digkill/prelook/internal/models"
)

func TestBuild(t *testing.T) {
	tests := []struct {
		name string
		cfg  models.GenerationConfig
		want string
	}{
		{
			name: "dye",
			cfg:  models.GenerationConfig{Gender: "Women", Category: "Medium", Style: "Lob", Color: "Dark Brown"},
			want: "A Women hairstyle. Lob cut, Medium length. Dye hair color Dark Brown. Professional salon look.",
		},
		{
			name: "highlights",
			cfg:  models.GenerationConfig{Gender: "Men", Category: "Long", Style: "Flow", Color: "Honey Blonde", HighlightIntensity: 40},
			want: "A Men hairstyle. Flow cut, Long length. Add Honey Blonde colored highlights/strands to the hair (balayage style). Highlight Intensity: 40%. Base color remains natural or blends lightly. Professional salon look.",
		},
		{
			name: "keep natural",
			cfg:  models.GenerationConfig{Gender: "Men", Category: "Short", Style: "High Fade", Color: KeepNatural},
			want: "A Men hairstyle. High Fade cut, Short length. Keep the original hair color. Professional salon look.",
		},
		{
			name: "keep natural with highlights",
			cfg:  models.GenerationConfig{Gender: "Women", Category: "Long", Style: "Beach Waves", Color: KeepNatural, HighlightIntensity: 25},
			want: "A Women hairstyle. Beach Waves cut, Long length. Keep the original hair color. Add subtle natural highlights, intensity 25%. Professional salon look.",
		},
		{
			name: "custom hex",
			cfg:  models.GenerationConfig{Gender: "Women", Category: "Short", Style: "Pixie", Color: "#ff00aa", CustomColor: true},
			want: "A Women hairstyle. Pixie cut, Short length. Dye hair color #ff00aa. Professional salon look.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Build(tt.cfg))
			assert.Equal(t, Build(tt.cfg), Build(tt.cfg))
		})
	}
}

func TestSummary(t *testing.T) {
	cfg := models.GenerationConfig{Gender: "Women", Category: "Medium", Style: "Lob", Color: "Dark Brown"}
	assert.Equal(t, "Women, Lob, Dark Brown", Summary(cfg))
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate(DefaultConfig()))
	for _, p := range Presets() {
		require.NoError(t, Validate(p.Config()), p.Label)
	}

	bad := []models.GenerationConfig{
		{Gender: "Men", Category: "Updo", Style: "Messy Bun", Color: KeepNatural},
		{Gender: "Women", Category: "Medium", Style: "Buzz Cut", Color: KeepNatural},
		{Gender: "Women", Category: "Medium", Style: "Lob", Color: "Neon"},
		{Gender: "Women", Category: "Medium", Style: "Lob", Color: "red", CustomColor: true},
		{Gender: "Women", Category: "Medium", Style: "Lob", Color: KeepNatural, HighlightIntensity: 101},
	}
	for _, cfg := range bad {
		assert.ErrorIs(t, Validate(cfg), ErrInvalidConfig, "%+v", cfg)
	}
}

func TestPresetByID(t *testing.T) {
	p, ok := PresetByID("2")
	require.True(t, ok)
	assert.Equal(t, "Surfer Vibe", p.Label)

	_, ok = PresetByID("9")
	assert.False(t, ok)
}

func TestSuggestIsValid(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 50; i++ {
		require.NoError(t, Validate(Suggest(rng)))
	}
}
