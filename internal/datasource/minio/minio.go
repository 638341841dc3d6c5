// Package minio reads input shards from an S3-compatible object store. The
// bucket and key prefix play the role of the input directory: objects
// directly under the prefix are listed by base name.
package minio

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"graphload/internal/datasource"
)

// Config locates a bucket prefix.
type Config struct {
	// EndpointURL is host:port or a full http(s) URL; an https scheme turns
	// on TLS.
	EndpointURL     string
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	UseSSL          bool
	Bucket          string
	Prefix          string
}

// Dir is a datasource.Dir over objects in one bucket prefix.
type Dir struct {
	client *minio.Client
	bucket string
	prefix string
}

// New connects a Dir. No request is made until List or Open.
func New(cfg Config) (*Dir, error) {
	if cfg.EndpointURL == "" {
		return nil, fmt.Errorf("minio: endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("minio: bucket is required")
	}
	endpoint, secure, err := parseEndpoint(cfg.EndpointURL, cfg.UseSSL)
	if err != nil {
		return nil, err
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio: create client: %w", err)
	}
	return &Dir{client: client, bucket: cfg.Bucket, prefix: normalizePrefix(cfg.Prefix)}, nil
}

// List returns the sorted base names of the objects directly under the
// prefix.
func (d *Dir) List(ctx context.Context) ([]string, error) {
	var out []string
	for obj := range d.client.ListObjects(ctx, d.bucket, minio.ListObjectsOptions{Prefix: d.prefix}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("minio: list %s: %w", d.Location(), obj.Err)
		}
		if name, ok := baseName(d.prefix, obj.Key); ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Source implements datasource.Dir.
func (d *Dir) Source(name string) datasource.Source {
	return &object{client: d.client, bucket: d.bucket, key: d.prefix + name}
}

// Location implements datasource.Dir.
func (d *Dir) Location() string { return "s3://" + path.Join(d.bucket, d.prefix) }

type object struct {
	client *minio.Client
	bucket string
	key    string
}

// Open streams the object. The first read surfaces a missing object.
func (o *object) Open(ctx context.Context) (io.ReadCloser, error) {
	obj, err := o.client.GetObject(ctx, o.bucket, o.key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("minio: get s3://%s/%s: %w", o.bucket, o.key, err)
	}
	return obj, nil
}

func parseEndpoint(raw string, useSSL bool) (string, bool, error) {
	if !strings.Contains(raw, "://") {
		return raw, useSSL, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false, fmt.Errorf("minio: invalid endpoint %q: %w", raw, err)
	}
	if u.Host == "" {
		return "", false, fmt.Errorf("minio: endpoint %q has no host", raw)
	}
	return u.Host, useSSL || u.Scheme == "https", nil
}

func normalizePrefix(p string) string {
	p = strings.TrimLeft(p, "/")
	if p != "" && !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p
}

// baseName strips prefix from key. Keys in nested "directories" and the
// directory markers themselves are rejected.
func baseName(prefix, key string) (string, bool) {
	rest, ok := strings.CutPrefix(key, prefix)
	if !ok || rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}
