package upload

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/livekit/protocol/logger"
	"github.com/pkg/errors"

	"github.com/livekit/livekit-capture/pkg/config"
)

const (
	partSize   = 5 * 1024 * 1024
	maxRetries = 5
)

type Uploader struct {
	bucket   string
	key      string
	uploader *s3manager.Uploader
}

func NewUploader(s3Conf config.S3Config) (*Uploader, error) {
	bucket, key := parseS3Url(s3Conf.BucketURL, time.Now())
	if bucket == "" {
		return nil, fmt.Errorf("invalid s3 url %q", s3Conf.BucketURL)
	}

	awsConf := &aws.Config{
		Region:     aws.String(s3Conf.Region),
		MaxRetries: aws.Int(maxRetries),
	}
	if s3Conf.AccessKey != "" {
		awsConf.Credentials = credentials.NewStaticCredentials(s3Conf.AccessKey, s3Conf.Secret, "")
	}
	if s3Conf.Endpoint != "" {
		awsConf.Endpoint = aws.String(s3Conf.Endpoint)
		awsConf.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsConf)
	if err != nil {
		return nil, err
	}

	return &Uploader{
		bucket: bucket,
		key:    key,
		uploader: s3manager.NewUploader(sess, func(u *s3manager.Uploader) {
			u.PartSize = partSize
		}),
	}, nil
}

// Upload sends the finished file and returns its location.
func (u *Uploader) Upload(ctx context.Context, filename string) (string, error) {
	f, err := os.Open(filename)
	if err != nil {
		return "", err
	}
	defer f.Close()

	start := time.Now()
	logger.Debugw("uploading recording", "file", filename, "bucket", u.bucket, "key", u.key)
	out, err := u.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(u.key),
		Body:        f,
		ContentType: aws.String("video/mp4"),
	})
	if err != nil {
		return "", errors.Wrap(err, "upload failed")
	}

	logger.Debugw("upload finished", "time", fmt.Sprint(time.Since(start)), "location", out.Location)
	return out.Location, nil
}

// parseS3Url splits s3://bucket/key. A missing key, or one ending in "/",
// gets a timestamped recording name.
func parseS3Url(s3Url string, now time.Time) (bucket, key string) {
	s3Url = strings.TrimPrefix(s3Url, "s3://")
	if idx := strings.Index(s3Url, "/"); idx != -1 {
		bucket = s3Url[:idx]
		key = s3Url[idx+1:]
	} else {
		bucket = s3Url
	}

	if key == "" || strings.HasSuffix(key, "/") {
		key = path.Join(key, fmt.Sprintf("recording-%s.mp4", now.Format("20060102150405")))
	}
	return
}
