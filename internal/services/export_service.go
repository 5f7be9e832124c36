package services

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/benmeehan/ortho-monitor/internal/models"
	"github.com/benmeehan/ortho-monitor/internal/session"
	"github.com/benmeehan/ortho-monitor/pkg/file"
	"github.com/benmeehan/ortho-monitor/pkg/s3"
	"github.com/rs/zerolog"
)

// ExportResult describes a finished export.
type ExportResult struct {
	Path      string
	SHA256    string
	Records   int
	Uploaded  bool
	ObjectURL string
}

// ExportService writes the session log to disk and optionally copies it to object storage.
type ExportService struct {
	Format     string
	Bucket     string
	Exporter   *session.Exporter
	FileClient file.FileOperations
	Storage    s3.ObjectStorageClient // nil disables upload
	Logger     zerolog.Logger

	now func() time.Time
}

// NewExportService initializes a new ExportService.
func NewExportService(format, dir, bucket string, fileClient file.FileOperations, storage s3.ObjectStorageClient,
	logger zerolog.Logger) *ExportService {
	return &ExportService{
		Format:     format,
		Bucket:     bucket,
		Exporter:   session.NewExporter(fileClient, dir),
		FileClient: fileClient,
		Storage:    storage,
		Logger:     logger,
		now:        time.Now,
	}
}

// Export writes records and, when storage is configured, uploads the file.
// A failed upload is returned as an error but the local file is kept.
func (e *ExportService) Export(ctx context.Context, records []models.SessionRecord) (ExportResult, error) {
	path, err := e.Exporter.Export(records, e.Format, e.now())
	if err != nil {
		return ExportResult{}, err
	}

	result := ExportResult{Path: path, Records: len(records)}

	hash, err := e.FileClient.GetFileHash(path)
	if err != nil {
		e.Logger.Warn().Err(err).Str("path", path).Msg("Failed to hash export")
	}
	result.SHA256 = hash

	e.Logger.Info().Str("path", path).Int("records", len(records)).Str("sha256", hash).Msg("Session exported")

	if e.Storage == nil {
		return result, nil
	}

	content, err := e.FileClient.ReadFileRaw(path)
	if err != nil {
		return result, fmt.Errorf("failed to read export for upload: %w", err)
	}

	objectName := filepath.Base(path)
	upload, err := e.Storage.UploadFile(ctx, e.Bucket, objectName, bytes.NewReader(content), int64(len(content)), contentType(e.Format))
	if err != nil {
		e.Logger.Error().Err(err).Str("bucket", e.Bucket).Str("object", objectName).Msg("Failed to upload export")
		return result, fmt.Errorf("failed to upload export: %w", err)
	}

	result.Uploaded = true
	result.ObjectURL = upload.PresignedURL
	e.Logger.Info().Str("bucket", e.Bucket).Str("object", upload.ObjectName).Int64("size", upload.Size).Msg("Export uploaded")
	return result, nil
}

func contentType(format string) string {
	if format == session.FormatJSON {
		return "application/json"
	}
	return "text/csv"
}
