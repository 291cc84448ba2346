package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// FolderAudio is the S3 prefix for archived story audio.
const FolderAudio = "audio"

type Config struct {
	Region          string `yaml:"AWS_REGION" env:"AWS_REGION"`
	AccessKeyID     string `yaml:"AWS_ACCESS_KEY_ID" env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"AWS_SECRET_ACCESS_KEY" env:"AWS_SECRET_ACCESS_KEY"`
	AudioBucket     string `yaml:"AUDIO_BUCKET" env:"AUDIO_BUCKET"`
}

// Enabled reports whether audio archiving was configured.
func (c Config) Enabled() bool {
	return c.Region != "" && c.AudioBucket != ""
}

// S3 archives rendered audio clips.
type S3 struct {
	uploader *manager.Uploader
	cfg      Config
	logger   *zap.Logger
}

// NewS3 uses static credentials when both keys are set and the default chain otherwise.
func NewS3(ctx context.Context, cfg Config, logger *zap.Logger) (*S3, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "",
		)))
	} else {
		logger.Warn("S3 client using default credential chain")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg)
	return &S3{
		uploader: manager.NewUploader(client),
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// AudioKey returns audio/{yyyy-mm-dd}/{name}.
func AudioKey(day time.Time, filename string) string {
	return path.Join(FolderAudio, day.Format("2006-01-02"), filepath.Base(filename))
}

// ArchiveAudio uploads the file at filePath and returns its object key.
func (s *S3) ArchiveAudio(ctx context.Context, filePath, contentType string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("storage: open %s: %w", filePath, err)
	}
	defer f.Close()

	key := AudioKey(time.Now(), filePath)
	out, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.AudioBucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("storage: upload %s: %w", key, err)
	}
	s.logger.Debug("audio archived", zap.String("key", key), zap.String("location", out.Location))
	return key, nil
}
