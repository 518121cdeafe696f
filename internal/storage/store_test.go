package storage

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInlineStoreRoundTrip(t *testing.T) {
	ref, err := InlineStore{}.Put(context.Background(), []byte("png-bytes"), "image/png")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "data:image/png;base64,"))

	data, mime, err := Fetch(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))
	assert.Equal(t, "image/png", mime)
}

func TestInlineStoreRejectsEmpty(t *testing.T) {
	_, err := InlineStore{}.Put(context.Background(), nil, "image/png")
	assert.ErrorIs(t, err, ErrEmptyImage)
}

func TestParseDataURIInvalid(t *testing.T) {
	for _, ref := range []string{"nope", "data:image/png,abc", "data:image/png;base64,%%%"} {
		_, _, err := ParseDataURI(ref)
		assert.ErrorIs(t, err, ErrInvalidImage, ref)
	}
}

func TestFetchHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("jpeg"))
	}))
	defer srv.Close()

	data, mime, err := Fetch(context.Background(), srv.URL+"/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, "jpeg", string(data))
	assert.Equal(t, "image/jpeg", mime)

	_, _, err = Fetch(context.Background(), "ftp://x")
	assert.ErrorIs(t, err, ErrInvalidImage)
}

type fakePutter struct {
	calls int
	input *s3.PutObjectInput
	err   error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.calls++
	f.input = in
	return &s3.PutObjectOutput{}, f.err
}

func TestS3StorePut(t *testing.T) {
	fake := &fakePutter{}
	store := &S3Store{
		cfg:    S3Config{Bucket: "b", PublicBaseURL: "https://cdn.example.com", Prefix: "looks"},
		client: fake,
	}

	url, err := store.Put(context.Background(), []byte("x"), "image/png")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "https://cdn.example.com/looks/"))
	assert.True(t, strings.HasSuffix(url, ".png"))
	assert.Equal(t, "b", aws.ToString(fake.input.Bucket))
	assert.Equal(t, "image/png", aws.ToString(fake.input.ContentType))

	again, err := store.Put(context.Background(), []byte("x"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, url, again)
	assert.Equal(t, 1, fake.calls)

	other, err := store.Put(context.Background(), []byte("y"), "image/png")
	require.NoError(t, err)
	assert.NotEqual(t, url, other)
	assert.Equal(t, 2, fake.calls)
}

func TestS3StorePutRejectsAndFails(t *testing.T) {
	fake := &fakePutter{}
	store := &S3Store{cfg: S3Config{Bucket: "b", PublicBaseURL: "https://cdn.example.com", Prefix: "looks"}, client: fake}

	_, err := store.Put(context.Background(), nil, "image/png")
	assert.ErrorIs(t, err, ErrEmptyImage)

	_, err = store.Put(context.Background(), []byte("plain text"), "")
	assert.ErrorIs(t, err, ErrInvalidImage)
	assert.Zero(t, fake.calls)

	fake.err = errors.New("denied")
	_, err = store.Put(context.Background(), []byte("\x89PNG\r\n\x1a\n0000"), "")
	assert.Error(t, err)
	assert.Equal(t, "image/png", aws.ToString(fake.input.ContentType))

	// a failed upload is retried on the next call
	_, err = store.Put(context.Background(), []byte("\x89PNG\r\n\x1a\n0000"), "")
	assert.Error(t, err)
	assert.Equal(t, 2, fake.calls)
}

func TestNewS3StoreValidates(t *testing.T) {
	_, err := NewS3Store(S3Config{})
	assert.Error(t, err)
	_, err = NewS3Store(S3Config{Bucket: "b", Region: "r"})
	assert.Error(t, err)
}
