package imagestore

import (
	"bytes"
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/consumedhq/consumed/core/logger"
)

// S3Configuration holds the credentials and bucket for the S3 driver.
type S3Configuration struct {
	AccessID   string
	AccessKey  string
	Region     string
	BucketName string
	KeyPrefix  string
}

// S3 stores blobs in an AWS S3 bucket.
type S3 struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3 creates an S3 store from the given configuration.
func NewS3(cfg S3Configuration) (*S3, error) {
	if cfg.BucketName == "" {
		return nil, errors.New("imagestore: bucket name must not be empty")
	}
	awsConfig, err := config.LoadDefaultConfig(
		context.TODO(),
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessID, cfg.AccessKey, "")),
	)
	if err != nil {
		return nil, err
	}
	logger.Default().Debugln("image store S3 enabled, bucket", cfg.BucketName)
	return &S3{
		client: s3.NewFromConfig(awsConfig),
		bucket: cfg.BucketName,
		prefix: cfg.KeyPrefix,
	}, nil
}

// Put implements Driver.
func (s *S3) Put(ctx context.Context, key string, data []byte) error {
	key, err := cleanKey(key)
	if err != nil {
		return err
	}
	uploader := manager.NewUploader(s.client)
	_, err = uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.prefix + key),
		Body:   bytes.NewReader(data),
	})
	return err
}

// Get implements Driver.
func (s *S3) Get(ctx context.Context, key string) ([]byte, error) {
	key, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	downloader := manager.NewDownloader(s.client)
	buf := manager.NewWriteAtBuffer(nil)
	_, err = downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.prefix + key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return buf.Bytes(), nil
}

// Delete implements Driver.
func (s *S3) Delete(ctx context.Context, key string) error {
	key, err := cleanKey(key)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.prefix + key),
	})
	return err
}
