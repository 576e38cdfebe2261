package publish

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"vodcutter/logger"
)

// S3Publisher uploads the VOD to an S3 bucket with multipart transfer and
// returns a presigned GET link.
type S3Publisher struct {
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	URLTTL    time.Duration
}

func (p *S3Publisher) client() *s3.Client {
	return s3.New(s3.Options{
		Region:      p.Region,
		Credentials: credentials.NewStaticCredentialsProvider(p.AccessKey, p.SecretKey, ""),
	})
}

func (p *S3Publisher) Publish(ctx context.Context, localPath string) (string, error) {
	name := objectName(localPath)
	logger.Infof("Publishing VOD to S3 bucket %s as %s", p.Bucket, name)

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open VOD: %w", err)
	}
	defer f.Close()

	client := p.client()
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = 16 << 20
	})
	if _, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(p.Bucket),
		Key:    aws.String(name),
		Body:   f,
	}); err != nil {
		return "", fmt.Errorf("failed to upload object %s to bucket %s: %w", name, p.Bucket, err)
	}

	presigner := s3.NewPresignClient(client)
	signed, err := presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.Bucket),
		Key:    aws.String(name),
	}, s3.WithPresignExpires(p.URLTTL))
	if err != nil {
		return "", fmt.Errorf("failed to presign S3 URL: %w", err)
	}
	return signed.URL, nil
}
