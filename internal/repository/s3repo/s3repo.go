// Package s3repo serves repositories stored in S3-compatible buckets and
// addressed as s3://bucket/prefix.
package s3repo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/bayleafwalker/depresolve/internal/artifact"
	"github.com/bayleafwalker/depresolve/internal/repository"
)

type Config struct {
	Endpoint  string `json:"endpoint"`
	Region    string `json:"region"`
	AccessKey string `json:"accessKey"`
	SecretKey string `json:"secretKey"`
	UseSSL    bool   `json:"useSSL"`
}

// Validate checks that an endpoint and a key pair are present.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return errors.New("s3 endpoint is required")
	}
	if strings.TrimSpace(c.AccessKey) == "" || strings.TrimSpace(c.SecretKey) == "" {
		return errors.New("s3 access key and secret key are required")
	}
	return nil
}

// objectStore is the subset of the minio client the transport uses.
type objectStore interface {
	Stat(ctx context.Context, bucket, key string) (time.Time, error)
	Open(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

type minioStore struct {
	client *minio.Client
}

func (m minioStore) Stat(ctx context.Context, bucket, key string) (time.Time, error) {
	info, err := m.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return time.Time{}, err
	}
	return info.LastModified, nil
}

func (m minioStore) Open(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	return m.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
}

// Transport fetches artifact files from buckets on one S3 endpoint.
type Transport struct {
	store objectStore
}

func New(cfg Config) (*Transport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}
	client, err := minio.New(strings.TrimSpace(cfg.Endpoint), &minio.Options{
		Creds:  credentials.NewStaticV4(strings.TrimSpace(cfg.AccessKey), strings.TrimSpace(cfg.SecretKey), ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return &Transport{store: minioStore{client: client}}, nil
}

var _ repository.Transport = (*Transport)(nil)

// Location splits an s3://bucket/prefix URL.
func Location(raw string) (bucket, prefix string, err error) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "s3" || u.Host == "" {
		return "", "", fmt.Errorf("repository url %q: %w", raw, repository.ErrBadURL)
	}
	return u.Host, strings.Trim(u.Path, "/"), nil
}

// ObjectKey returns the key of c below prefix.
func ObjectKey(prefix string, c artifact.Coordinate) string {
	if prefix == "" {
		return c.Path()
	}
	return prefix + "/" + c.Path()
}

func (t *Transport) Fetch(ctx context.Context, c artifact.Coordinate, remote repository.Remote, w io.Writer) error {
	_, err := t.FetchIfNewer(ctx, c, remote, time.Time{}, w)
	return err
}

func (t *Transport) FetchIfNewer(ctx context.Context, c artifact.Coordinate, remote repository.Remote, since time.Time, w io.Writer) (bool, error) {
	bucket, prefix, err := Location(remote.URL)
	if err != nil {
		return false, err
	}
	key := ObjectKey(prefix, c)

	if !since.IsZero() {
		modified, err := t.store.Stat(ctx, bucket, key)
		if err != nil {
			return false, objectError(c, remote, err)
		}
		if !modified.After(since) {
			return false, nil
		}
	}

	obj, err := t.store.Open(ctx, bucket, key)
	if err != nil {
		return false, objectError(c, remote, err)
	}
	defer obj.Close()
	if _, err := io.Copy(w, obj); err != nil {
		return false, objectError(c, remote, err)
	}
	return true, nil
}

func objectError(c artifact.Coordinate, remote repository.Remote, err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" || resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s in %s: %w", c, remote.ID, repository.ErrNotFound)
	}
	return fmt.Errorf("s3 %s from %s: %w", c, remote.ID, err)
}
