// Package storage accesses the object store holding the plain text of
// imported case documents.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/ethicase/backend/internal/util"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

func NewS3Client(ctx context.Context) *s3.Client {
	region := util.GetEnv("AWS_REGION")
	endpoint := util.GetEnv("AWS_ENDPOINT")
	accessKey := util.GetEnv("AWS_ACCESS_KEY")
	secretKey := util.GetEnv("AWS_SECRET_KEY")
	cfg, err := config.LoadDefaultConfig(
		ctx,
		config.WithRegion(region),
		config.WithBaseEndpoint(endpoint),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKey,
			secretKey,
			"",
		)),
	)
	if err != nil {
		return nil
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})
	return client
}

func GetFile(ctx context.Context, client *s3.Client, key string) ([]byte, error) {
	bucket := util.GetEnv("AWS_BUCKET")
	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get file from S3: %w", err)
	}
	defer result.Body.Close()

	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, result.Body); err != nil {
		return nil, fmt.Errorf("failed to read file contents: %w", err)
	}
	return buf.Bytes(), nil
}

// TextLoader loads document text from S3 by source key. It satisfies the
// association scorer's DocumentTextLoader.
type TextLoader struct {
	client *s3.Client
}

func NewTextLoader(client *s3.Client) *TextLoader {
	return &TextLoader{client: client}
}

func (l *TextLoader) GetText(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("document has no source key")
	}
	data, err := GetFile(ctx, l.client, key)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
