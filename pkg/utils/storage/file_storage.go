package storage

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/gosimple/slug"

	"bryllupstorget_backend/pkg/config"
	"bryllupstorget_backend/pkg/utils/image"
)

var (
	s3Client *s3.Client
	bucket   string
	region   string
)

func InitStorage(cfg config.StorageConfig) error {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return fmt.Errorf("unable to load SDK config: %v", err)
	}

	s3Client = s3.NewFromConfig(awsCfg)
	bucket = cfg.Bucket
	region = cfg.Region
	return nil
}

type UploadResult struct {
	URL         string
	StorageKey  string
	ContentType string
	SizeBytes   int64
}

// UploadGalleryPhoto optimizes a gallery image and stores it under the
// vendor's prefix.
func UploadGalleryPhoto(file *multipart.FileHeader, username string) (*UploadResult, error) {
	buf, contentType, err := image.ProcessImage(file)
	if err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	key := fmt.Sprintf("gallery/%s/%s%s", slug.Make(username), uuid.New().String(), ext)

	_, err = s3Client.PutObject(context.TODO(), &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return nil, fmt.Errorf("could not upload to S3: %v", err)
	}

	return &UploadResult{
		URL:         fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, region, key),
		StorageKey:  key,
		ContentType: contentType,
		SizeBytes:   int64(buf.Len()),
	}, nil
}

// DeletePhoto removes a stored object by key.
func DeletePhoto(key string) error {
	_, err := s3Client.DeleteObject(context.TODO(), &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	return err
}
