package storage

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/you/bokohub/domain"
)

func TestLocalBlobStore(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalBlobStore(t.TempDir())
	require.NoError(t, err)

	key := "users/1/2026/03/01/abc"
	require.NoError(t, store.Put(ctx, key, strings.NewReader("hello"), 5, "text/plain"))

	body, err := store.Get(ctx, key)
	require.NoError(t, err)
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	require.NoError(t, body.Close())
	assert.Equal(t, "hello", string(data))

	require.NoError(t, store.Delete(ctx, key))
	_, err = store.Get(ctx, key)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, store.Delete(ctx, key))
}

func TestLocalBlobStore_RejectsTraversal(t *testing.T) {
	store, err := NewLocalBlobStore(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", "../escape", "/etc/passwd", "users/../../x"} {
		err := store.Put(context.Background(), key, strings.NewReader("x"), 1, "")
		assert.Error(t, err, key)
	}
}

// fakeS3 stores objects in memory
type fakeS3 struct {
	objects map[string][]byte
	types   map[string]string
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	k := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	f.objects[k] = data
	f.types[k] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("missing")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3BlobStore(t *testing.T) {
	ctx := context.Background()
	fake := &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
	store := &S3BlobStore{client: fake, bucket: "uploads"}

	require.NoError(t, store.Put(ctx, "users/1/a", strings.NewReader("pdf"), 3, "application/pdf"))
	assert.Equal(t, []byte("pdf"), fake.objects["uploads/users/1/a"])
	assert.Equal(t, "application/pdf", fake.types["uploads/users/1/a"])

	body, err := store.Get(ctx, "users/1/a")
	require.NoError(t, err)
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "pdf", string(data))

	require.NoError(t, store.Delete(ctx, "users/1/a"))
	_, err = store.Get(ctx, "users/1/a")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestNewS3BlobStore(t *testing.T) {
	_, err := NewS3BlobStore(context.Background(), S3Config{})
	assert.Error(t, err)

	store, err := NewS3BlobStore(context.Background(), S3Config{
		Bucket:       "uploads",
		Region:       "us-east-1",
		BaseEndpoint: "http://127.0.0.1:9000",
		AccessKey:    "minio",
		SecretKey:    "minio123",
		UsePathStyle: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "uploads", store.bucket)
}
