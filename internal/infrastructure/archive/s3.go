// Package archive copies generated invoice PDFs to S3-compatible object storage.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"

	"invoicegen/internal/domain"
	"invoicegen/internal/domain/invoice"
	"invoicegen/pkg/logger"
)

// Config selects the bucket and key layout.
type Config struct {
	Bucket   string
	Region   string
	Prefix   string
	Endpoint string // non-empty for MinIO and other S3-compatible stores
}

// S3Archiver uploads invoice PDFs after they are stored.
type S3Archiver struct {
	uploader s3manageriface.UploaderAPI
	bucket   string
	prefix   string
}

// NewS3Uploader builds an uploader from the default AWS credential chain.
func NewS3Uploader(cfg Config) (*s3manager.Uploader, error) {
	awsCfg := &aws.Config{Region: aws.String(cfg.Region)}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("aws session: %w", err)
	}
	return s3manager.NewUploader(sess), nil
}

// NewS3Archiver creates an archiver writing to cfg.Bucket.
func NewS3Archiver(uploader s3manageriface.UploaderAPI, cfg Config) *S3Archiver {
	return &S3Archiver{
		uploader: uploader,
		bucket:   cfg.Bucket,
		prefix:   strings.Trim(cfg.Prefix, "/"),
	}
}

// ObjectKey returns where inv is archived: <prefix>/<owner>/<number>.pdf.
// The number is client supplied and is escaped into a single path segment.
func (a *S3Archiver) ObjectKey(inv *invoice.Invoice) (string, error) {
	dir := path.Join(a.prefix, inv.OwnerID.String()) + "/"
	key := path.Join(dir, url.PathEscape(inv.Number+".pdf"))
	if !strings.HasPrefix(key, dir) || path.Dir(key)+"/" != dir {
		return "", fmt.Errorf("invoice number %q escapes archive prefix %s", inv.Number, dir)
	}
	return key, nil
}

// Archive uploads the PDF of inv.
func (a *S3Archiver) Archive(ctx context.Context, inv *invoice.Invoice) error {
	if len(inv.PDF) == 0 {
		return fmt.Errorf("invoice %s has no PDF", inv.ID)
	}
	key, err := a.ObjectKey(inv)
	if err != nil {
		return err
	}
	out, err := a.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(inv.PDF),
		ContentType: aws.String("application/pdf"),
		Metadata: map[string]*string{
			"Invoice-Id":     aws.String(inv.ID.String()),
			"Invoice-Number": aws.String(inv.Number),
		},
	})
	if err != nil {
		return fmt.Errorf("upload %s to s3://%s: %w", key, a.bucket, err)
	}
	logger.Debug(ctx, "invoice archived", "invoice_id", inv.ID, "location", out.Location)
	return nil
}

// Hook adapts the archiver to the invoice after-create hook.
func (a *S3Archiver) Hook() domain.Hook[*invoice.Invoice] {
	return a.Archive
}
