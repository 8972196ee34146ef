package main

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/xorcare/pointer"
)

type S3ClientInterface interface {
	PutObjectFromReader(ctx context.Context, bucket string, key string, body io.Reader, contentType string, metadata map[string]string) (*string, error)
	PutObject(ctx context.Context, bucket string, key string, body []byte) (*string, error)
	DeleteObject(ctx context.Context, bucket string, key string) error
}

type IngestS3Client struct {
	awss3client *awss3.Client
}

// NewS3Client builds a client from the default AWS credential chain; a non-empty endpoint points it at an
// S3-compatible store with path-style addressing.
func NewS3Client(ctx context.Context, endpoint string) (*IngestS3Client, error) {
	awscfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}

	var optFns []func(*awss3.Options)
	if endpoint != "" {
		const defaultRegion = "us-east-1"
		if awscfg.Region == "" {
			awscfg.Region = defaultRegion
		}
		optFns = append(optFns, func(o *awss3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
	}

	return &IngestS3Client{awss3client: awss3.NewFromConfig(awscfg, optFns...)}, nil
}

func (t IngestS3Client) PutObjectFromReader(ctx context.Context, bucket string, key string, body io.Reader, contentType string, metadata map[string]string) (*string, error) {
	poi := awss3.PutObjectInput{
		Bucket:   pointer.String(bucket),
		Key:      pointer.String(key),
		Body:     body,
		Metadata: metadata,
	}
	if contentType != "" {
		poi.ContentType = pointer.String(contentType)
	}

	putObjectOutput, err := t.awss3client.PutObject(ctx, &poi)
	if err != nil {
		return nil, fmt.Errorf("error putting object %s to bucket %s: %w", key, bucket, err)
	}
	return putObjectOutput.ETag, nil
}

func (t IngestS3Client) PutObject(ctx context.Context, bucket string, key string, body []byte) (*string, error) {
	return t.PutObjectFromReader(ctx, bucket, key, bytes.NewReader(body), "", nil)
}

func (t IngestS3Client) DeleteObject(ctx context.Context, bucket string, key string) error {
	_, err := t.awss3client.DeleteObject(ctx, &awss3.DeleteObjectInput{Bucket: &bucket, Key: &key})
	if err != nil {
		return err
	}
	return nil
}
