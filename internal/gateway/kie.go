package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/digkill/prelook/internal/kie"
	"github.com/digkill/prelook/internal/models"
)

// Publisher makes raw bytes reachable by URL. KIE only accepts input images by URL.
type Publisher interface {
	Put(ctx context.Context, data []byte, contentType string) (string, error)
}

type kieEditor interface {
	EditImage(ctx context.Context, opts kie.EditOptions) (*kie.Image, error)
	Download(ctx context.Context, img *kie.Image) error
}

// KIEGateway renders views through the KIE task API and downloads each result.
type KIEGateway struct {
	client    kieEditor
	publisher Publisher
	model     string
	log       *slog.Logger
}

func NewKIE(client *kie.Client, publisher Publisher, model string, log *slog.Logger) *KIEGateway {
	return &KIEGateway{client: client, publisher: publisher, model: model, log: log}
}

func (g *KIEGateway) GenerateView(ctx context.Context, src Image, prompt string, angle models.Angle) (*Image, error) {
	srcURL := src.URL
	if srcURL == "" {
		if g.publisher == nil {
			return nil, fmt.Errorf("kie %s: source image has no url", angle)
		}
		mime := src.MIMEType
		if mime == "" {
			mime = "image/jpeg"
		}
		u, err := g.publisher.Put(ctx, src.Data, mime)
		if err != nil {
			return nil, fmt.Errorf("kie %s: publish source: %w", angle, err)
		}
		srcURL = u
	}

	out, err := g.client.EditImage(ctx, kie.EditOptions{
		Model:     g.model,
		Prompt:    FullPrompt(prompt, angle),
		InputURLs: []string{srcURL},
	})
	if err != nil {
		if errors.Is(err, kie.ErrNoResult) {
			return nil, ErrNoImage
		}
		return nil, fmt.Errorf("kie generate %s: %w", angle, err)
	}
	if err := g.client.Download(ctx, out); err != nil {
		return nil, fmt.Errorf("kie %s: %w", angle, err)
	}
	if len(out.Bytes) == 0 {
		g.log.Warn("kie returned an empty image", "angle", angle, "url", out.URL)
		return nil, ErrNoImage
	}
	return &Image{Data: out.Bytes, MIMEType: out.Mime, URL: out.URL}, nil
}
