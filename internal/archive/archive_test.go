package archive

import (
	"context"
	"errors"
	"io"
	"net/url"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	buckets  map[string]bool
	objects  map[string][]byte
	opts     map[string]minio.PutObjectOptions
	existErr error
	putErr   error
	expiries []time.Duration
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		buckets: map[string]bool{},
		objects: map[string][]byte{},
		opts:    map[string]minio.PutObjectOptions{},
	}
}

func (f *fakeClient) BucketExists(_ context.Context, bucket string) (bool, error) {
	if f.existErr != nil {
		return false, f.existErr
	}
	return f.buckets[bucket], nil
}

func (f *fakeClient) MakeBucket(_ context.Context, bucket string, _ minio.MakeBucketOptions) error {
	f.buckets[bucket] = true
	return nil
}

func (f *fakeClient) PutObject(_ context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.putErr != nil {
		return minio.UploadInfo{}, f.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	f.objects[bucket+"/"+key] = data
	f.opts[key] = opts
	return minio.UploadInfo{Bucket: bucket, Key: key, Size: size}, nil
}

func (f *fakeClient) PresignedGetObject(_ context.Context, bucket, key string, expires time.Duration, _ url.Values) (*url.URL, error) {
	f.expiries = append(f.expiries, expires)
	return url.Parse("https://objects.test/" + bucket + "/" + key + "?X-Amz-Signature=abc")
}

func testStore(client *fakeClient, cfg Config) *Store {
	s := newStore(client, cfg)
	s.newID = func() string { return "0000-id" }
	s.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }
	return s
}

func TestNewRequiresEndpointAndBucket(t *testing.T) {
	_, err := New(context.Background(), Config{Bucket: "exports"})
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = New(context.Background(), Config{Endpoint: "localhost:9000"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestEnsureBucketCreatesMissingBucket(t *testing.T) {
	client := newFakeClient()
	s := testStore(client, Config{Bucket: "exports"})

	require.NoError(t, s.ensureBucket(context.Background()))
	assert.True(t, client.buckets["exports"])
	require.NoError(t, s.ensureBucket(context.Background()))
}

func TestEnsureBucketPropagatesErrors(t *testing.T) {
	client := newFakeClient()
	client.existErr = errors.New("connection refused")
	s := testStore(client, Config{Bucket: "exports"})

	err := s.ensureBucket(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestPutUploadsAndPresigns(t *testing.T) {
	client := newFakeClient()
	s := testStore(client, Config{Bucket: "exports", URLExpiry: time.Hour})

	got, err := s.Put(context.Background(), Object{
		UserID: 7, ObjectiveID: 3, Filename: "Market-Research.md",
		ContentType: "text/markdown; charset=utf-8", Data: []byte("# Market Research\n"),
	})
	require.NoError(t, err)

	assert.Equal(t, "exports/7/3/0000-id/Market-Research.md", got.Key)
	assert.Equal(t, "https://objects.test/exports/exports/7/3/0000-id/Market-Research.md?X-Amz-Signature=abc", got.URL)
	assert.Equal(t, int64(18), got.Size)
	assert.Equal(t, time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC), got.ExpiresAt)
	assert.Equal(t, []byte("# Market Research\n"), client.objects["exports/"+got.Key])
	assert.Equal(t, "text/markdown; charset=utf-8", client.opts[got.Key].ContentType)
	assert.Equal(t, `attachment; filename="Market-Research.md"`, client.opts[got.Key].ContentDisposition)
	assert.Equal(t, []time.Duration{time.Hour}, client.expiries)
}

func TestPutDefaultsExpiryAndStripsDirectories(t *testing.T) {
	client := newFakeClient()
	s := testStore(client, Config{Bucket: "exports"})

	got, err := s.Put(context.Background(), Object{UserID: 1, ObjectiveID: 2, Filename: "../../etc/passwd"})
	require.NoError(t, err)
	assert.Equal(t, "exports/1/2/0000-id/passwd", got.Key)
	assert.Equal(t, []time.Duration{DefaultURLExpiry}, client.expiries)
}

func TestPutUploadFailure(t *testing.T) {
	client := newFakeClient()
	client.putErr = errors.New("access denied")
	s := testStore(client, Config{Bucket: "exports"})

	_, err := s.Put(context.Background(), Object{UserID: 1, ObjectiveID: 2, Filename: "a.md"})
	require.Error(t, err)
	assert.Empty(t, client.expiries)
}
