package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/hifz-api/internal/dto"
)

var (
	// ErrUploadsDisabled indicates no attachment storage driver is configured.
	ErrUploadsDisabled = errors.New("attachment uploads are disabled")
	// ErrUploadTooLarge indicates the payload exceeded the configured limit.
	ErrUploadTooLarge = errors.New("file exceeds maximum allowed size")
	// ErrUploadTypeNotAllowed indicates the MIME type is not permitted.
	ErrUploadTypeNotAllowed = errors.New("file type not allowed")
)

// FileStorage abstracts upload destinations.
type FileStorage interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// AttachmentStore validates submission attachments and hands them to the storage driver.
type AttachmentStore interface {
	Store(ctx context.Context, file *multipart.FileHeader) (dto.AttachmentResponse, error)
}

type attachmentStore struct {
	storage FileStorage
	logger  zerolog.Logger
	maxSize int64
	tracer  trace.Tracer
}

// NewAttachmentStore constructs an attachment store. A nil storage disables uploads.
func NewAttachmentStore(storage FileStorage, maxSizeMB int, logger zerolog.Logger) AttachmentStore {
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	return &attachmentStore{
		storage: storage,
		logger:  logger.With().Str("component", "attachment_store").Logger(),
		maxSize: int64(maxSizeMB) * 1024 * 1024,
		tracer:  otel.Tracer("github.com/noah-isme/hifz-api/internal/service/attachment"),
	}
}

func (s *attachmentStore) Store(ctx context.Context, file *multipart.FileHeader) (dto.AttachmentResponse, error) {
	if s.storage == nil {
		return dto.AttachmentResponse{}, ErrUploadsDisabled
	}

	ctx, span := s.tracer.Start(ctx, "attachments.store")
	defer span.End()

	span.SetAttributes(attribute.Int64("upload.max_bytes", s.maxSize))
	if file == nil {
		err := errors.New("file is required")
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		return dto.AttachmentResponse{}, err
	}
	span.SetAttributes(
		attribute.String("upload.original_name", strings.TrimSpace(file.Filename)),
		attribute.Int64("upload.request_size", file.Size),
	)

	if file.Size > s.maxSize {
		span.SetStatus(codes.Error, "payload too large")
		return dto.AttachmentResponse{}, ErrUploadTooLarge
	}

	handle, err := file.Open()
	if err != nil {
		span.RecordError(err)
		return dto.AttachmentResponse{}, err
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, s.maxSize+1)); err != nil {
		span.RecordError(err)
		return dto.AttachmentResponse{}, err
	}
	if int64(buf.Len()) > s.maxSize {
		span.SetStatus(codes.Error, "payload too large")
		return dto.AttachmentResponse{}, ErrUploadTooLarge
	}

	detected := mimetype.Detect(buf.Bytes())
	contentType := strings.ToLower(detected.String())
	span.SetAttributes(attribute.String("upload.detected_mime", contentType))
	if !isAllowedAttachment(detected) {
		span.SetStatus(codes.Error, "type not allowed")
		return dto.AttachmentResponse{}, ErrUploadTypeNotAllowed
	}

	name := attachmentName(file.Filename, detected.Extension())
	url, err := s.storage.Upload(ctx, name, bytes.NewReader(buf.Bytes()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage failed")
		return dto.AttachmentResponse{}, fmt.Errorf("store attachment: %w", err)
	}

	s.logger.Info().Str("name", name).Str("content_type", contentType).Int("size", buf.Len()).Msg("attachment stored")
	span.SetStatus(codes.Ok, "stored")

	return dto.AttachmentResponse{
		URL:         url,
		ContentType: contentType,
		Size:        int64(buf.Len()),
	}, nil
}

// isAllowedAttachment accepts images, PDFs and recitation audio.
func isAllowedAttachment(detected *mimetype.MIME) bool {
	for m := detected; m != nil; m = m.Parent() {
		value := strings.ToLower(m.String())
		if strings.HasPrefix(value, "image/") || strings.HasPrefix(value, "audio/") {
			return true
		}
		if value == "application/pdf" {
			return true
		}
	}
	return false
}

func attachmentName(original, detectedExt string) string {
	base := strings.TrimSuffix(filepath.Base(original), filepath.Ext(original))
	base = strings.ToLower(base)
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, base)
	base = strings.Trim(base, "-")
	if base == "" {
		base = "attachment"
	}

	ext := strings.ToLower(detectedExt)
	if ext == "" {
		ext = strings.ToLower(filepath.Ext(original))
	}
	if ext == "" {
		ext = ".bin"
	}

	return fmt.Sprintf("%s-%s%s", base, uuid.NewString()[:8], ext)
}
