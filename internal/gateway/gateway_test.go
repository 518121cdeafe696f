package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/digkill/prelook/internal/kie"
	"github.com/digkill/prelook/internal/models"
)

type fakeGateway struct {
	mu      sync.Mutex
	results map[models.Angle]*Image
	errs    map[models.Angle]error
	calls   []models.Angle
	block   bool
}

func (f *fakeGateway) GenerateView(ctx context.Context, _ Image, _ string, angle models.Angle) (*Image, error) {
	f.mu.Lock()
	f.calls = append(f.calls, angle)
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err := f.errs[angle]; err != nil {
		return nil, err
	}
	return f.results[angle], nil
}

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func img(s string) *Image { return &Image{Data: []byte(s), MIMEType: "image/png"} }

func TestFrontView(t *testing.T) {
	g := &fakeGateway{results: map[models.Angle]*Image{models.AngleFront: img("f")}}
	out, err := FrontView(context.Background(), g, Image{}, "p")
	require.NoError(t, err)
	assert.Equal(t, "f", string(out.Data))

	_, err = FrontView(context.Background(), &fakeGateway{}, Image{}, "p")
	assert.ErrorIs(t, err, ErrNoImage)

	boom := errors.New("boom")
	_, err = FrontView(context.Background(), &fakeGateway{errs: map[models.Angle]error{models.AngleFront: boom}}, Image{}, "p")
	assert.ErrorIs(t, err, boom)
}

func TestRemainingViewsPartial(t *testing.T) {
	g := &fakeGateway{
		results: map[models.Angle]*Image{models.AngleLeft: img("l"), models.AngleBack: img("b")},
		errs:    map[models.Angle]error{models.AngleRight: errors.New("rate limited")},
	}
	out, err := RemainingViews(context.Background(), g, Image{}, "p", models.RemainingAngles, nil)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "l", string(out[models.AngleLeft].Data))
	assert.Nil(t, out[models.AngleRight])
	assert.Equal(t, "b", string(out[models.AngleBack].Data))
	assert.ElementsMatch(t, models.RemainingAngles, g.calls)
}

func TestRemainingViewsAllEmptyIsNotAnError(t *testing.T) {
	out, err := RemainingViews(context.Background(), &fakeGateway{}, Image{}, "p", models.RemainingAngles, nil)
	require.NoError(t, err)
	for _, a := range models.RemainingAngles {
		assert.Nil(t, out[a])
	}
}

func TestRemainingViewsAllFailed(t *testing.T) {
	boom := errors.New("boom")
	g := &fakeGateway{errs: map[models.Angle]error{models.AngleLeft: boom, models.AngleRight: boom, models.AngleBack: boom}}
	_, err := RemainingViews(context.Background(), g, Image{}, "p", models.RemainingAngles, nil)
	assert.ErrorIs(t, err, boom)
}

func TestRemainingViewsContextCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := RemainingViews(ctx, &fakeGateway{block: true}, Image{}, "p", models.RemainingAngles, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRemainingViewsSettlesEveryAngleBeforeFailing(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	var settled atomic.Int32
	g := gatewayFunc(func(ctx context.Context, _ Image, _ string, angle models.Angle) (*Image, error) {
		defer settled.Add(1)
		if angle == models.AngleLeft {
			return img("l"), nil
		}
		<-ctx.Done()
		return nil, ctx.Err()
	})

	_, err := RemainingViews(ctx, g, Image{}, "p", models.RemainingAngles, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.EqualValues(t, 3, settled.Load())
}

func TestRemainingViewsSubset(t *testing.T) {
	g := &fakeGateway{results: map[models.Angle]*Image{models.AngleBack: img("b")}}
	out, err := RemainingViews(context.Background(), g, Image{}, "p", []models.Angle{models.AngleBack}, nil)
	require.NoError(t, err)
	assert.Len(t, out, 1)
	assert.Equal(t, []models.Angle{models.AngleBack}, g.calls)
}

func TestFullPromptMentionsAngle(t *testing.T) {
	p := FullPrompt("A bold hairstyle.", models.AngleBack)
	assert.Contains(t, p, "Apply this style: A bold hairstyle..")
	assert.Contains(t, p, "Back view (rear)")
}

func TestBreakerTripsOnRealFailures(t *testing.T) {
	var calls atomic.Int32
	boom := errors.New("boom")
	next := gatewayFunc(func(context.Context, Image, string, models.Angle) (*Image, error) {
		calls.Add(1)
		return nil, boom
	})
	var opened atomic.Bool
	b := NewBreaker(next, BreakerSettings{
		Name:                "test",
		ConsecutiveFailures: 2,
		OpenFor:             time.Minute,
		OnStateChange: func(_ string, _, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				opened.Store(true)
			}
		},
	}, nil)

	for range 2 {
		_, err := b.GenerateView(context.Background(), Image{}, "p", models.AngleFront)
		assert.ErrorIs(t, err, boom)
	}
	_, err := b.GenerateView(context.Background(), Image{}, "p", models.AngleFront)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(2), calls.Load())
	assert.True(t, opened.Load())
	assert.Equal(t, gobreaker.StateOpen, b.State())
}

func TestBreakerIgnoresEmptyResponses(t *testing.T) {
	next := gatewayFunc(func(context.Context, Image, string, models.Angle) (*Image, error) {
		return nil, ErrNoImage
	})
	b := NewBreaker(next, BreakerSettings{Name: "empty", ConsecutiveFailures: 1}, nil)
	for range 3 {
		_, err := b.GenerateView(context.Background(), Image{}, "p", models.AngleLeft)
		assert.ErrorIs(t, err, ErrNoImage)
	}
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

type gatewayFunc func(ctx context.Context, src Image, prompt string, angle models.Angle) (*Image, error)

func (f gatewayFunc) GenerateView(ctx context.Context, src Image, prompt string, angle models.Angle) (*Image, error) {
	return f(ctx, src, prompt, angle)
}

func TestImageFromResponse(t *testing.T) {
	assert.Nil(t, imageFromResponse(nil))
	assert.Nil(t, imageFromResponse(&genai.GenerateContentResponse{}))

	res := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []*genai.Part{
			{Text: "here you go"},
			{InlineData: &genai.Blob{Data: []byte("img")}},
		}},
	}}}
	out := imageFromResponse(res)
	require.NotNil(t, out)
	assert.Equal(t, "img", string(out.Data))
	assert.Equal(t, "image/png", out.MIMEType)

	textOnly := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []*genai.Part{{Text: "I can't do that"}}},
	}}}
	assert.Nil(t, imageFromResponse(textOnly))
}

type fakeEditor struct {
	opts     kie.EditOptions
	editErr  error
	download []byte
}

func (f *fakeEditor) EditImage(_ context.Context, opts kie.EditOptions) (*kie.Image, error) {
	f.opts = opts
	if f.editErr != nil {
		return nil, f.editErr
	}
	return &kie.Image{URL: "https://cdn/out.png"}, nil
}

func (f *fakeEditor) Download(_ context.Context, img *kie.Image) error {
	img.Bytes = f.download
	img.Mime = "image/png"
	return nil
}

type fakePublisher struct{ puts int }

func (p *fakePublisher) Put(context.Context, []byte, string) (string, error) {
	p.puts++
	return "https://bucket/src.jpg", nil
}

func TestKIEGatewayPublishesSource(t *testing.T) {
	editor := &fakeEditor{download: []byte("out")}
	pub := &fakePublisher{}
	g := &KIEGateway{client: editor, publisher: pub, model: "nano-banana-pro", log: discardLogger()}

	out, err := g.GenerateView(context.Background(), Image{Data: []byte("src")}, "style", models.AngleLeft)
	require.NoError(t, err)
	assert.Equal(t, "out", string(out.Data))
	assert.Equal(t, 1, pub.puts)
	assert.Equal(t, []string{"https://bucket/src.jpg"}, editor.opts.InputURLs)
	assert.Contains(t, editor.opts.Prompt, "Left side profile")

	_, err = g.GenerateView(context.Background(), Image{URL: "https://already/there.jpg"}, "style", models.AngleBack)
	require.NoError(t, err)
	assert.Equal(t, 1, pub.puts)
}

func TestKIEGatewayNoResult(t *testing.T) {
	g := &KIEGateway{client: &fakeEditor{editErr: kie.ErrNoResult}, log: discardLogger()}
	_, err := g.GenerateView(context.Background(), Image{URL: "https://x"}, "s", models.AngleFront)
	assert.ErrorIs(t, err, ErrNoImage)

	g = &KIEGateway{client: &fakeEditor{}, log: discardLogger()}
	_, err = g.GenerateView(context.Background(), Image{URL: "https://x"}, "s", models.AngleFront)
	assert.ErrorIs(t, err, ErrNoImage)
}
