// Package s3host stores pictures in an S3 compatible bucket (AWS S3, MinIO).
package s3host

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	CopyObject(ctx context.Context, in *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) objectAPI {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// Options configure the bucket access.
//
// PublicURL is the prefix pictures are served from; it defaults to
// BaseEndpoint/Bucket, which suits a MinIO bucket with anonymous read.
type Options struct {
	AccessKey    string
	SecretKey    string
	Bucket       string
	Region       string
	BaseEndpoint string
	Prefix       string
	PublicURL    string
}

type Host struct {
	client    objectAPI
	bucket    string
	prefix    string
	publicURL string
}

func New(ctx context.Context, opts Options) (*Host, error) {
	if opts.Bucket == "" {
		return nil, errors.New("s3 bucket is not set")
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}

	cfg, err := loadDefaultAWSConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if opts.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(opts.BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	public := strings.TrimRight(opts.PublicURL, "/")
	if public == "" {
		public = strings.TrimRight(opts.BaseEndpoint, "/") + "/" + opts.Bucket
	}

	return &Host{
		client:    client,
		bucket:    opts.Bucket,
		prefix:    opts.Prefix,
		publicURL: public,
	}, nil
}

func (h *Host) key(name string) string {
	return h.prefix + name
}

// URL returns the public address of the picture stored under name.
func (h *Host) URL(name string) string {
	return h.publicURL + "/" + escapeKey(h.key(name))
}

func (h *Host) Upload(ctx context.Context, name string, data []byte) (string, error) {
	key := h.key(name)

	_, err := h.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(h.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(http.DetectContentType(data)),
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}

	return h.URL(name), nil
}

// Rename copies the object to its new key and removes the old one. If the old
// key cannot be removed the copy is dropped again so that exactly one of the
// two keys is left behind.
func (h *Host) Rename(ctx context.Context, oldName, newName string) (string, error) {
	if oldName == newName {
		return h.URL(newName), nil
	}

	oldKey, newKey := h.key(oldName), h.key(newName)

	_, err := h.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(h.bucket),
		CopySource: aws.String(h.bucket + "/" + escapeKey(oldKey)),
		Key:        aws.String(newKey),
	})
	if err != nil {
		return "", fmt.Errorf("copy object %s to %s: %w", oldKey, newKey, err)
	}

	if err := h.deleteKey(ctx, oldKey); err != nil {
		if undoErr := h.deleteKey(ctx, newKey); undoErr != nil {
			return "", errors.Join(err, undoErr)
		}
		return "", err
	}

	return h.URL(newName), nil
}

func (h *Host) Delete(ctx context.Context, name string) error {
	return h.deleteKey(ctx, h.key(name))
}

func (h *Host) deleteKey(ctx context.Context, key string) error {
	_, err := h.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
