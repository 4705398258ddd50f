package ledger

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"flasharb/internal/config"
)

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archiver uploads a copy of the local ledger file to S3.
type Archiver struct {
	client objectPutter
	bucket string
	prefix string
	logger *slog.Logger
	now    func() time.Time
}

// NewArchiver builds an S3 client from cfg. Static credentials are used
// when both keys are set, otherwise the default AWS credential chain applies.
func NewArchiver(ctx context.Context, cfg config.ArchiveConfig, logger *slog.Logger) (*Archiver, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})
	return newArchiver(client, cfg.Bucket, cfg.Prefix, logger), nil
}

func newArchiver(client objectPutter, bucket, prefix string, logger *slog.Logger) *Archiver {
	return &Archiver{client: client, bucket: bucket, prefix: prefix, logger: logger, now: time.Now}
}

// Upload puts the file at localPath under a timestamped key and returns the key.
func (a *Archiver) Upload(ctx context.Context, localPath string) (string, error) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return "", fmt.Errorf("read ledger: %w", err)
	}

	key := ObjectKey(a.prefix, filepath.Base(localPath), a.now())
	input := &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("text/csv"),
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	if _, err := a.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("upload ledger: %w", err)
	}

	a.logger.Info("Ledger archived", "bucket", a.bucket, "key", key, "bytes", len(data))
	return key, nil
}

// ObjectKey builds "<prefix>/date=YYYY-MM-DD/<stem>_<HHMMSS>.<ext>" in UTC.
func ObjectKey(prefix, base string, t time.Time) string {
	t = t.UTC()
	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	name := fmt.Sprintf("%s_%s%s", stem, t.Format("150405"), ext)
	return path.Join(strings.Trim(prefix, "/"), "date="+t.Format("2006-01-02"), name)
}
