package uploads

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"starauto-backend/internal/application/images"
	"starauto-backend/internal/infrastructure/storage"
	"starauto-backend/internal/metrics"

	"github.com/rs/zerolog/log"
)

var (
	ErrListingRequired = errors.New("listingId is required")
	ErrNoImages        = errors.New("No valid images provided")
	ErrPathRequired    = errors.New("Image path is required")
	ErrInvalidPath     = errors.New("Invalid image path")
)

// Part is one received image, keyed by its slot ("image3").
type Part struct {
	SlotKey string
	Blob    images.Blob
}

// Service stores already-normalized listing photos in the blob store.
type Service struct {
	Blobs   storage.BlobStore
	Metrics *metrics.Metrics
}

// StoreBatch writes each non-empty part to cars/{listingID}/{slotKey}.jpg and
// returns the public URL of every part that was stored. A failing part does
// not stop the others.
func (s *Service) StoreBatch(ctx context.Context, listingID string, parts []Part) (map[string]string, error) {
	listingID = strings.TrimSpace(listingID)
	if listingID == "" || strings.ContainsAny(listingID, "/\\") || listingID == "." || listingID == ".." {
		return nil, ErrListingRequired
	}

	usable := make([]Part, 0, len(parts))
	for _, p := range parts {
		if _, err := images.ParseSlotKey(p.SlotKey); err != nil {
			s.Metrics.IncUpload(metrics.UploadSkipped)
			log.Warn().Str("slot", p.SlotKey).Msg("ignoring part with unknown slot key")
			continue
		}
		if p.Blob.Size() == 0 {
			s.Metrics.IncUpload(metrics.UploadSkipped)
			log.Warn().Str("slot", p.SlotKey).Msg("image part has zero size, skipping")
			continue
		}
		if res := images.Validate(&images.FileInfo{Name: p.Blob.Name, ContentType: p.Blob.ContentType, Size: p.Blob.Size()}); !res.Valid {
			s.Metrics.IncUpload(metrics.UploadSkipped)
			log.Warn().Str("slot", p.SlotKey).Str("name", p.Blob.Name).Str("content_type", p.Blob.ContentType).Str("reason", res.Reason).Msg("rejecting image part")
			continue
		}
		usable = append(usable, p)
	}
	if len(usable) == 0 {
		return nil, ErrNoImages
	}
	sort.SliceStable(usable, func(i, j int) bool {
		a, _ := images.ParseSlotKey(usable[i].SlotKey)
		b, _ := images.ParseSlotKey(usable[j].SlotKey)
		return a < b
	})

	urls := make(map[string]string, len(usable))
	for _, p := range usable {
		path := images.ObjectPath(listingID, p.SlotKey)
		url, err := s.Blobs.Put(ctx, path, p.Blob.Data, "image/jpeg")
		if err != nil {
			s.Metrics.IncUpload(metrics.UploadFailed)
			log.Error().Err(err).Str("slot", p.SlotKey).Str("path", path).Int64("size", p.Blob.Size()).Msg("Error uploading image")
			continue
		}
		if !images.LooksLikeBlobStoreURL(url) {
			s.Metrics.IncUpload(metrics.UploadFailed)
			log.Error().Str("slot", p.SlotKey).Str("url", url).Msg("Invalid URL format from blob store")
			continue
		}
		s.Metrics.IncUpload(metrics.UploadStored)
		urls[p.SlotKey] = url
	}
	log.Info().Str("listing_id", listingID).Int("received", len(usable)).Int("stored", len(urls)).Msg("image batch stored")
	return urls, nil
}

// DeleteImage removes one object by its bucket-relative path.
func (s *Service) DeleteImage(ctx context.Context, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return ErrPathRequired
	}
	if strings.HasPrefix(path, "/") || strings.Contains(path, "..") {
		return fmt.Errorf("%w: %s", ErrInvalidPath, path)
	}
	if err := s.Blobs.Remove(ctx, path); err != nil {
		return fmt.Errorf("Failed to delete image: %w", err)
	}
	return nil
}
