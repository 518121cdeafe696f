// Package gateway talks to the remote image model that renders hairstyle views.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/digkill/prelook/internal/models"
)

// ErrNoImage marks a call that completed but produced no usable image.
var ErrNoImage = errors.New("model returned no image")

type Image struct {
	Data     []byte
	MIMEType string
	// URL is set when the image is reachable over HTTP (object storage or the model's CDN).
	URL string
}

// Gateway renders one view of the source photo with the style prompt applied.
type Gateway interface {
	GenerateView(ctx context.Context, src Image, prompt string, angle models.Angle) (*Image, error)
}

func AngleLabel(a models.Angle) string {
	switch a {
	case models.AngleFront:
		return "Front view"
	case models.AngleLeft:
		return "Left side profile"
	case models.AngleRight:
		return "Right side profile"
	case models.AngleBack:
		return "Back view (rear)"
	}
	return string(a)
}

// FullPrompt wraps the style prompt with the camera angle and quality instructions.
func FullPrompt(stylePrompt string, angle models.Angle) string {
	return fmt.Sprintf("Edit this image. Apply this style: %s. "+
		"IMPORTANT: Generate the view from the %s. "+
		"Maintain facial identity/head shape where possible. "+
		"If view is 'Front', keep original pose. "+
		"Style: High quality, photorealistic, cinematic natural lighting, 8k resolution. "+
		"Ensure hair texture is detailed and realistic.", stylePrompt, AngleLabel(angle))
}

// FrontView renders the front view. Any failure, including an empty
// response, means there is no usable image.
func FrontView(ctx context.Context, g Gateway, src Image, stylePrompt string) (*Image, error) {
	out, err := g.GenerateView(ctx, src, stylePrompt, models.AngleFront)
	if err != nil {
		return nil, err
	}
	if out == nil || (len(out.Data) == 0 && out.URL == "") {
		return nil, ErrNoImage
	}
	return out, nil
}

// RemainingViews renders the given angles concurrently and waits for all of
// them. A failed angle is reported as a nil entry. The call as a whole fails
// only when the context ends before an angle settles or every angle failed
// with a real error.
func RemainingViews(ctx context.Context, g Gateway, src Image, stylePrompt string, angles []models.Angle, log *slog.Logger) (map[models.Angle]*Image, error) {
	var (
		mu       sync.Mutex
		results  = make(map[models.Angle]*Image, len(angles))
		failures []error
	)

	var group errgroup.Group
	for _, angle := range angles {
		group.Go(func() error {
			out, err := g.GenerateView(ctx, src, stylePrompt, angle)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil && out != nil && (len(out.Data) > 0 || out.URL != ""):
				results[angle] = out
			case ctx.Err() != nil:
				return ctx.Err()
			case err == nil || errors.Is(err, ErrNoImage):
				results[angle] = nil
			default:
				results[angle] = nil
				failures = append(failures, fmt.Errorf("%s: %w", angle, err))
				if log != nil {
					log.Warn("angle generation failed", "angle", angle, "err", err)
				}
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	if len(angles) > 0 && len(failures) == len(angles) {
		return nil, errors.Join(failures...)
	}
	return results, nil
}
