package service

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"log/slog"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	// Register the webp decoder; jpeg, png and gif come with imaging.
	_ "golang.org/x/image/webp"

	"github.com/atelierhq/design-api/internal/store"
)

// sourceImageContentType is the canonical stored format. Every accepted
// upload is re-encoded, so downstream consumers never see the original
// container.
const sourceImageContentType = "image/png"

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// ArtifactService validates and normalizes uploaded reference images and
// stores them as blobs keyed by the owning job. Stored artifacts are
// append-only: a key is written once and never mutated.
type ArtifactService struct {
	blobs        store.BlobStore
	maxBytes     int64
	maxDimension int
	logger       *slog.Logger
}

func NewArtifactService(blobs store.BlobStore, maxBytes int64, maxDimension int, logger *slog.Logger) (*ArtifactService, error) {
	if blobs == nil {
		return nil, fmt.Errorf("blob store cannot be nil")
	}
	if maxBytes <= 0 {
		return nil, fmt.Errorf("max upload size must be positive, got %d", maxBytes)
	}
	if maxDimension <= 0 {
		return nil, fmt.Errorf("max image dimension must be positive, got %d", maxDimension)
	}
	return &ArtifactService{
		blobs:        blobs,
		maxBytes:     maxBytes,
		maxDimension: maxDimension,
		logger:       logger.With(slog.String("component", "artifact_service")),
	}, nil
}

// SourceImageKey returns the blob key for a job's normalized reference
// image.
func SourceImageKey(jobID uuid.UUID) string {
	return fmt.Sprintf("jobs/%s/source.png", jobID)
}

// StoreSourceImage validates an upload and persists its normalized form,
// returning the blob key. The content type check runs before the size
// check, and both run before any bytes are persisted, so a rejected
// upload never leaves a partial artifact behind.
func (s *ArtifactService) StoreSourceImage(ctx context.Context, jobID uuid.UUID, data []byte, contentType string) (string, error) {
	if !allowedImageTypes[contentType] {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedImageType, contentType)
	}
	if int64(len(data)) > s.maxBytes {
		return "", fmt.Errorf("%w: %d bytes, limit %d", ErrImageTooLarge, len(data), s.maxBytes)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	bounds := img.Bounds()
	if bounds.Dx() > s.maxDimension || bounds.Dy() > s.maxDimension {
		img = imaging.Fit(img, s.maxDimension, s.maxDimension, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("failed to encode normalized image: %w", err)
	}

	key := SourceImageKey(jobID)
	if err := s.blobs.Put(ctx, key, buf.Bytes(), sourceImageContentType); err != nil {
		return "", fmt.Errorf("failed to store image: %w", err)
	}

	s.logger.Debug("stored reference image",
		slog.String("key", key),
		slog.Int("original_bytes", len(data)),
		slog.Int("stored_bytes", buf.Len()))
	return key, nil
}

// GetImage returns the stored bytes for an artifact ref together with
// its content type.
func (s *ArtifactService) GetImage(ctx context.Context, ref string) ([]byte, string, error) {
	data, err := s.blobs.Get(ctx, ref)
	if err != nil {
		return nil, "", err
	}
	return data, sourceImageContentType, nil
}
