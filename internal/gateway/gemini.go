package gateway

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/genai"

	"github.com/digkill/prelook/internal/models"
)

// GeminiGateway edits the source photo with a Gemini image model.
type GeminiGateway struct {
	client *genai.Client
	model  string
	log    *slog.Logger
}

func NewGemini(ctx context.Context, apiKey, model string, log *slog.Logger) (*GeminiGateway, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &GeminiGateway{client: client, model: model, log: log}, nil
}

func (g *GeminiGateway) GenerateView(ctx context.Context, src Image, prompt string, angle models.Angle) (*Image, error) {
	mime := src.MIMEType
	if mime == "" {
		mime = "image/jpeg"
	}
	parts := []*genai.Part{
		{InlineData: &genai.Blob{MIMEType: mime, Data: src.Data}},
		genai.NewPartFromText(FullPrompt(prompt, angle)),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	res, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini generate %s: %w", angle, err)
	}
	img := imageFromResponse(res)
	if img == nil {
		g.log.Warn("gemini returned no image", "angle", angle, "model", g.model)
		return nil, ErrNoImage
	}
	return img, nil
}

func imageFromResponse(res *genai.GenerateContentResponse) *Image {
	if res == nil || len(res.Candidates) == 0 || res.Candidates[0].Content == nil {
		return nil
	}
	for _, part := range res.Candidates[0].Content.Parts {
		if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
			mime := part.InlineData.MIMEType
			if mime == "" {
				mime = "image/png"
			}
			return &Image{Data: part.InlineData.Data, MIMEType: mime}
		}
	}
	return nil
}
