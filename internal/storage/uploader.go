package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type S3Config struct {
	Endpoint      string
	Region        string
	AccessKey     string
	SecretKey     string
	Bucket        string
	PublicBaseURL string
	UsePathStyle  bool
	Prefix        string
}

func (c *S3Config) validate() error {
	var problems []string
	if c.Bucket == "" {
		problems = append(problems, "bucket")
	}
	if c.Region == "" {
		problems = append(problems, "region")
	}
	if c.AccessKey == "" || c.SecretKey == "" {
		problems = append(problems, "credentials")
	}
	if c.PublicBaseURL == "" {
		problems = append(problems, "public base url")
	}
	if len(problems) > 0 {
		return fmt.Errorf("s3 store: missing %s", strings.Join(problems, ", "))
	}
	if c.Prefix == "" {
		c.Prefix = "looks"
	}
	c.Prefix = strings.Trim(c.Prefix, "/")
	c.PublicBaseURL = strings.TrimRight(c.PublicBaseURL, "/")
	return nil
}

type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store keeps images in a public bucket under content-addressed keys, so the
// same photo published for several angles is uploaded once.
type S3Store struct {
	cfg      S3Config
	client   putObjectAPI
	uploaded sync.Map // key -> struct{}
}

func NewS3Store(cfg S3Config) (*S3Store, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	options := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: cfg.UsePathStyle,
	}
	if cfg.Endpoint != "" {
		options.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return &S3Store{cfg: cfg, client: s3.New(options)}, nil
}

func (u *S3Store) Put(ctx context.Context, data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyImage
	}
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return "", errors.Join(ErrInvalidImage, fmt.Errorf("content type %q", contentType))
	}

	key := u.objectKey(data, contentType)
	if _, seen := u.uploaded.Load(key); seen {
		return u.publicURL(key), nil
	}
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(u.cfg.Bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(data),
		ContentType:  aws.String(contentType),
		CacheControl: aws.String("public, max-age=31536000, immutable"),
		ACL:          types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return "", fmt.Errorf("upload to s3: %w", err)
	}
	u.uploaded.Store(key, struct{}{})
	return u.publicURL(key), nil
}

func (u *S3Store) objectKey(data []byte, contentType string) string {
	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:16])
	return path.Join(u.cfg.Prefix, digest[:2], digest+extensionFromContentType(contentType))
}

func (u *S3Store) publicURL(key string) string {
	return u.cfg.PublicBaseURL + "/" + key
}

func extensionFromContentType(contentType string) string {
	switch strings.ToLower(contentType) {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".bin"
	}
}
