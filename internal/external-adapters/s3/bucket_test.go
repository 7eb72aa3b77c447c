package s3

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type putCall struct {
	key         string
	contentType string
	acl         types.ObjectCannedACL
	body        string
}

type fakeClient struct {
	puts    []putCall
	listing *s3.ListObjectsV2Output
	listIn  *s3.ListObjectsV2Input
	putErr  error
	listErr error
}

func (f *fakeClient) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.puts = append(f.puts, putCall{
		key:         aws.ToString(in.Key),
		contentType: aws.ToString(in.ContentType),
		acl:         in.ACL,
		body:        string(body),
	})
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeClient) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.listIn = in
	if f.listErr != nil {
		return nil, f.listErr
	}
	if f.listing == nil {
		return &s3.ListObjectsV2Output{}, nil
	}
	return f.listing, nil
}

func TestUploadPublicReadWithMimeType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ReviewBoard-1.2.3.tar.gz")
	require.NoError(t, os.WriteFile(path, []byte("sdist"), 0o600))

	client := &fakeClient{}
	bucket := NewBucket(client, "downloads.reviewboard.org")

	err := bucket.Upload(context.Background(), path, "ReviewBoard/1.2/ReviewBoard-1.2.3.tar.gz", "application/x-tar")
	require.NoError(t, err)

	require.Len(t, client.puts, 1)
	assert.Equal(t, "ReviewBoard/1.2/ReviewBoard-1.2.3.tar.gz", client.puts[0].key)
	assert.Equal(t, "application/x-tar", client.puts[0].contentType)
	assert.Equal(t, types.ObjectCannedACLPublicRead, client.puts[0].acl)
	assert.Equal(t, "sdist", client.puts[0].body)
}

func TestUploadMissingFile(t *testing.T) {
	client := &fakeClient{}
	bucket := NewBucket(client, "b")

	err := bucket.Upload(context.Background(), filepath.Join(t.TempDir(), "gone"), "k", "text/plain")
	require.Error(t, err)
	assert.Empty(t, client.puts)
}

func TestUploadClientError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	bucket := NewBucket(&fakeClient{putErr: errors.New("access denied")}, "b")
	err := bucket.Upload(context.Background(), path, "k", "text/plain")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
	assert.Contains(t, err.Error(), "s3://b/k")
}

func TestUploadDirectoryIndex(t *testing.T) {
	modified := time.Date(2009, 6, 1, 12, 0, 0, 0, time.UTC)
	client := &fakeClient{
		listing: &s3.ListObjectsV2Output{
			CommonPrefixes: []types.CommonPrefix{
				{Prefix: aws.String("ReviewBoard/1.2/nightly/")},
			},
			Contents: []types.Object{
				{Key: aws.String("ReviewBoard/1.2/index.html"), Size: aws.Int64(10)},
				{Key: aws.String("ReviewBoard/1.2/ReviewBoard-1.2.3.tar.gz"), Size: aws.Int64(2048), LastModified: &modified},
				{Key: aws.String("ReviewBoard/1.2/ReviewBoard-1.2.3-py2.6.egg"), Size: aws.Int64(1024)},
			},
		},
	}
	bucket := NewBucket(client, "downloads.reviewboard.org")

	require.NoError(t, bucket.UploadDirectoryIndex(context.Background(), "ReviewBoard/1.2"))

	require.NotNil(t, client.listIn)
	assert.Equal(t, "ReviewBoard/1.2/", aws.ToString(client.listIn.Prefix))
	assert.Equal(t, "/", aws.ToString(client.listIn.Delimiter))

	require.Len(t, client.puts, 1)
	put := client.puts[0]
	assert.Equal(t, "ReviewBoard/1.2/index.html", put.key)
	assert.Equal(t, "text/html", put.contentType)
	assert.Equal(t, types.ObjectCannedACLPublicRead, put.acl)

	assert.Contains(t, put.body, `<a href="../">../</a>`)
	assert.Contains(t, put.body, `<a href="nightly/">nightly/</a>`)
	assert.Contains(t, put.body, "ReviewBoard-1.2.3.tar.gz")
	assert.Contains(t, put.body, "2009-06-01T12:00:00Z")
	assert.NotContains(t, put.body, `href="index.html"`)

	// directories first, then files by name
	dir := indexOf(put.body, "nightly/")
	egg := indexOf(put.body, "ReviewBoard-1.2.3-py2.6.egg")
	tar := indexOf(put.body, "ReviewBoard-1.2.3.tar.gz")
	assert.Less(t, dir, egg)
	assert.Less(t, egg, tar)
}

func TestUploadDirectoryIndexAtRoot(t *testing.T) {
	client := &fakeClient{
		listing: &s3.ListObjectsV2Output{
			CommonPrefixes: []types.CommonPrefix{{Prefix: aws.String("ReviewBoard/")}},
		},
	}
	bucket := NewBucket(client, "b")

	require.NoError(t, bucket.UploadDirectoryIndex(context.Background(), ""))

	assert.Nil(t, client.listIn.Prefix)
	require.Len(t, client.puts, 1)
	assert.Equal(t, "index.html", client.puts[0].key)
	assert.NotContains(t, client.puts[0].body, `href="../"`)
	assert.Contains(t, client.puts[0].body, `<a href="ReviewBoard/">ReviewBoard/</a>`)
}

func TestUploadDirectoryIndexListError(t *testing.T) {
	client := &fakeClient{listErr: errors.New("no such bucket")}
	bucket := NewBucket(client, "b")

	err := bucket.UploadDirectoryIndex(context.Background(), "ReviewBoard/")
	require.Error(t, err)
	assert.Empty(t, client.puts)
}

func TestNormalizePrefix(t *testing.T) {
	tests := map[string]string{
		"":                 "",
		"/":                "",
		"ReviewBoard":      "ReviewBoard/",
		"ReviewBoard/":     "ReviewBoard/",
		"/ReviewBoard/1.2": "ReviewBoard/1.2/",
	}
	for in, want := range tests {
		assert.Equal(t, want, normalizePrefix(in), "normalizePrefix(%q)", in)
	}
}

func indexOf(s, sub string) int {
	return strings.Index(s, sub)
}
