// Package s3 publishes release artifacts to an S3 bucket and maintains the
// bucket's browsable directory indexes.
package s3

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// IndexFileName is the object written at each indexed prefix
const IndexFileName = "index.html"

// API is the subset of the S3 client the bucket uses
type API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Bucket implements gateways.ObjectStore for one S3 bucket
type Bucket struct {
	client API
	name   string
}

// NewBucket creates a bucket backed by the given client
func NewBucket(client API, name string) *Bucket {
	return &Bucket{client: client, name: name}
}

// NewBucketFromEnvironment creates a bucket using the default AWS credential
// chain (environment, shared config, instance role)
func NewBucketFromEnvironment(ctx context.Context, name, region string) (*Bucket, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	return NewBucket(s3.NewFromConfig(cfg), name), nil
}

// Name returns the bucket name
func (b *Bucket) Name() string {
	return b.name
}

// Upload stores localPath at key, publicly readable, with mimeType
func (b *Bucket) Upload(ctx context.Context, localPath, key, mimeType string) error {
	//nolint:gosec // G304: localPath is a recorded build artifact
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", localPath, err)
	}

	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.name),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(mimeType),
		ACL:           types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return fmt.Errorf("failed to upload s3://%s/%s: %w", b.name, key, err)
	}

	return nil
}

// indexEntry is one row of a directory index
type indexEntry struct {
	Name         string
	Size         int64
	LastModified string
	IsDir        bool
}

type indexPage struct {
	Bucket  string
	Prefix  string
	Parent  bool
	Entries []indexEntry
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
 <head>
  <meta charset="utf-8">
  <title>Index of /{{.Prefix}}</title>
 </head>
 <body>
  <h1>Index of /{{.Prefix}}</h1>
  <table>
   <tr><th>Name</th><th>Last modified</th><th>Size</th></tr>
{{- if .Parent}}
   <tr><td><a href="../">../</a></td><td></td><td>-</td></tr>
{{- end}}
{{- range .Entries}}
{{- if .IsDir}}
   <tr><td><a href="{{.Name}}/">{{.Name}}/</a></td><td></td><td>-</td></tr>
{{- else}}
   <tr><td><a href="{{.Name}}">{{.Name}}</a></td><td>{{.LastModified}}</td><td>{{.Size}}</td></tr>
{{- end}}
{{- end}}
  </table>
 </body>
</html>
`))

// UploadDirectoryIndex lists the objects directly under prefix and uploads
// a generated index.html there
func (b *Bucket) UploadDirectoryIndex(ctx context.Context, prefix string) error {
	prefix = normalizePrefix(prefix)

	entries, err := b.listPrefix(ctx, prefix)
	if err != nil {
		return err
	}

	var page bytes.Buffer
	if err := indexTemplate.Execute(&page, indexPage{
		Bucket:  b.name,
		Prefix:  prefix,
		Parent:  prefix != "",
		Entries: entries,
	}); err != nil {
		return fmt.Errorf("render index for %q: %w", prefix, err)
	}

	key := prefix + IndexFileName
	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.name),
		Key:           aws.String(key),
		Body:          bytes.NewReader(page.Bytes()),
		ContentLength: aws.Int64(int64(page.Len())),
		ContentType:   aws.String("text/html"),
		ACL:           types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return fmt.Errorf("failed to upload index s3://%s/%s: %w", b.name, key, err)
	}

	return nil
}

func (b *Bucket) listPrefix(ctx context.Context, prefix string) ([]indexEntry, error) {
	input := &s3.ListObjectsV2Input{
		Bucket:    aws.String(b.name),
		Delimiter: aws.String("/"),
	}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}

	var dirs, files []indexEntry
	paginator := s3.NewListObjectsV2Paginator(b.client, input)
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list s3://%s/%s: %w", b.name, prefix, err)
		}

		for _, cp := range out.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), prefix), "/")
			if name != "" {
				dirs = append(dirs, indexEntry{Name: name, IsDir: true})
			}
		}

		for _, obj := range out.Contents {
			name := path.Base(aws.ToString(obj.Key))
			if name == IndexFileName || strings.HasSuffix(aws.ToString(obj.Key), "/") {
				continue
			}
			entry := indexEntry{Name: name, Size: aws.ToInt64(obj.Size)}
			if obj.LastModified != nil {
				entry.LastModified = obj.LastModified.UTC().Format(time.RFC3339)
			}
			files = append(files, entry)
		}
	}

	sort.Slice(dirs, func(i, j int) bool { return dirs[i].Name < dirs[j].Name })
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return append(dirs, files...), nil
}

// normalizePrefix strips leading slashes and ensures a trailing slash on
// non-root prefixes
func normalizePrefix(prefix string) string {
	prefix = strings.TrimLeft(prefix, "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix
}
