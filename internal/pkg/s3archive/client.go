package s3archive

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gofiber/fiber/v2/log"

	"github.com/axdashboard/axdash/app/models"
)

// Client writes dead-lettered webhook events to an S3 bucket
type Client struct {
	s3Client *s3.Client
	config   *Config
	now      func() time.Time
}

// NewClient creates the archive client and checks that the bucket is reachable
func NewClient(ctx context.Context, cfg *Config) (*Client, error) {
	if !cfg.IsEnabled() {
		return nil, fmt.Errorf("dead-letter archive is disabled")
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)))
	}
	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			o.UseAccelerate = false
		}
		o.UsePathStyle = cfg.PathStyle
	})

	client := &Client{
		s3Client: s3Client,
		config:   cfg,
		now:      time.Now,
	}

	if _, err := s3Client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(cfg.BucketName)}); err != nil {
		return nil, fmt.Errorf("bucket %s not accessible: %w", cfg.BucketName, err)
	}

	log.Infof("[S3Archive] Archiving dead-lettered webhooks to bucket: %s", cfg.BucketName)
	return client, nil
}

// PutDeadLetter stores the raw payload of event. The processing error and
// attempt count travel as object metadata.
func (c *Client) PutDeadLetter(ctx context.Context, event *models.WebhookEvent) error {
	at := c.now()
	if event.DeadLetteredAt != nil {
		at = *event.DeadLetteredAt
	}
	key := c.config.ObjectKey(event.EventID, at)
	body := []byte(event.PayloadJSON)

	_, err := c.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.config.BucketName),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String("application/json"),
		ContentLength: aws.Int64(int64(len(body))),
		Metadata: map[string]string{
			"event-type":     event.EventType,
			"opportunity-id": event.OpportunityID,
			"attempts":       strconv.Itoa(event.Attempts),
			"upload-source":  "axdash-dead-letter",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to archive event %d: %w", event.ID, err)
	}

	log.Infof("[S3Archive] Archived event %d to s3://%s/%s", event.ID, c.config.BucketName, key)
	return nil
}
