// Package reliability provides operational safety nets around the ledger,
// currently off-site backups of the SQLite file.
package reliability

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/vnnyx/lumina-capital/internal/database"
)

// BackupService uploads the ledger database to S3
type BackupService struct {
	db       *database.DB
	dbPath   string
	uploader *manager.Uploader
	bucket   string
	prefix   string
	log      zerolog.Logger
}

// NewBackupService creates a backup service for the given ledger file
func NewBackupService(ctx context.Context, db *database.DB, dbPath, region, bucket, prefix string, log zerolog.Logger) (*BackupService, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &BackupService{
		db:       db,
		dbPath:   dbPath,
		uploader: manager.NewUploader(s3.NewFromConfig(awsCfg)),
		bucket:   bucket,
		prefix:   prefix,
		log:      log.With().Str("service", "backup").Logger(),
	}, nil
}

// Run checkpoints the WAL and uploads the ledger file. The object key
// carries a timestamp so backups never overwrite each other.
func (s *BackupService) Run(ctx context.Context) error {
	if err := s.db.WALCheckpoint("TRUNCATE"); err != nil {
		return fmt.Errorf("checkpoint before backup failed: %w", err)
	}

	f, err := os.Open(s.dbPath)
	if err != nil {
		return fmt.Errorf("failed to open ledger file: %w", err)
	}
	defer f.Close()

	key := filepath.ToSlash(filepath.Join(
		s.prefix,
		time.Now().UTC().Format("2006/01/02"),
		fmt.Sprintf("ledger-%s.db", time.Now().UTC().Format("150405")),
	))

	started := time.Now()
	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("failed to upload backup: %w", err)
	}

	s.log.Info().
		Str("bucket", s.bucket).
		Str("key", key).
		Dur("took", time.Since(started)).
		Msg("Ledger backup uploaded")

	return nil
}
