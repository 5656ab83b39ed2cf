// Package archive keeps exported transcripts in S3-compatible object storage
// and hands out time-limited download links.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// DefaultURLExpiry is used when Config.URLExpiry is zero.
const DefaultURLExpiry = 24 * time.Hour

// ErrNotConfigured is returned by New when no endpoint or bucket is set.
var ErrNotConfigured = errors.New("export archive is not configured")

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	URLExpiry time.Duration
}

// Object is a rendered export ready for upload.
type Object struct {
	UserID      int64
	ObjectiveID int64
	Filename    string
	ContentType string
	Data        []byte
}

// Archived describes a stored export.
type Archived struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	Size      int64     `json:"size"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type objectClient interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expires time.Duration, reqParams url.Values) (*url.URL, error)
}

// Store uploads exports to a single bucket.
type Store struct {
	client objectClient
	bucket string
	expiry time.Duration
	newID  func() string
	now    func() time.Time
}

// New connects to the object store and creates the bucket when missing.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" || strings.TrimSpace(cfg.Bucket) == "" {
		return nil, ErrNotConfigured
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create object storage client: %w", err)
	}
	s := newStore(client, cfg)
	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func newStore(client objectClient, cfg Config) *Store {
	expiry := cfg.URLExpiry
	if expiry <= 0 {
		expiry = DefaultURLExpiry
	}
	return &Store{
		client: client,
		bucket: cfg.Bucket,
		expiry: expiry,
		newID:  func() string { return uuid.NewString() },
		now:    time.Now,
	}
}

func (s *Store) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	return nil
}

// Put uploads obj under exports/<user>/<objective>/<id>/<filename> and
// returns a presigned GET link.
func (s *Store) Put(ctx context.Context, obj Object) (Archived, error) {
	name := path.Base(strings.TrimSpace(obj.Filename))
	if name == "." || name == "/" || name == "" {
		name = "transcript"
	}
	key := fmt.Sprintf("exports/%d/%d/%s/%s", obj.UserID, obj.ObjectiveID, s.newID(), name)

	info, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(obj.Data), int64(len(obj.Data)), minio.PutObjectOptions{
		ContentType:        obj.ContentType,
		ContentDisposition: fmt.Sprintf("attachment; filename=%q", name),
	})
	if err != nil {
		return Archived{}, fmt.Errorf("upload %s: %w", key, err)
	}

	link, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.expiry, nil)
	if err != nil {
		return Archived{}, fmt.Errorf("presign %s: %w", key, err)
	}
	return Archived{
		Key:       key,
		URL:       link.String(),
		Size:      info.Size,
		ExpiresAt: s.now().Add(s.expiry).UTC(),
	}, nil
}
