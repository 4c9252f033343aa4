package ingest

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"starauto-backend/internal/application/images"

	"github.com/rs/zerolog/log"
)

// ErrImagePhaseFailed means the listing row exists but none of its photos landed.
var ErrImagePhaseFailed = errors.New("listing created but image upload failed")

// Inventory is the slice of the API the admin flow needs.
type Inventory interface {
	GetListing(ctx context.Context, listingID int64) (Listing, error)
	PatchListing(ctx context.Context, listingID int64, body map[string]interface{}) (Listing, error)
	CreateListing(ctx context.Context, body map[string]interface{}) (Listing, error)
}

// Session is the admin editor flow: validate, allocate, upload, write back.
type Session struct {
	API          Inventory
	Orchestrator *Orchestrator
}

// NewSession builds a Session where c is both the JSON API and the upload transport.
func NewSession(c *Client) *Session {
	return &Session{API: c, Orchestrator: NewOrchestrator(c)}
}

// AddResult reports what happened to each selected file.
type AddResult struct {
	Listing  Listing
	URLs     map[string]string
	Failed   []string          // allocated slots that did not receive a URL
	Rejected map[string]string // file name -> validation reason
}

// AddPhotos attaches files to the lowest free slots of an existing listing.
func (s *Session) AddPhotos(ctx context.Context, listingID int64, files []images.Blob) (*AddResult, error) {
	if _, err := images.Allocate(nil, len(files)); err != nil {
		return nil, err
	}
	listing, err := s.API.GetListing(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("load listing %d: %w", listingID, err)
	}
	return s.attach(ctx, listingID, listing, files)
}

// CreateWithPhotos creates the row first, then uploads its photos. There is
// no rollback: if the photo step fails the listing stays without images and
// the error wraps ErrImagePhaseFailed alongside the created listing.
func (s *Session) CreateWithPhotos(ctx context.Context, fields map[string]interface{}, files []images.Blob) (*AddResult, error) {
	if _, err := images.Allocate(nil, len(files)); err != nil {
		return nil, err
	}
	created, err := s.API.CreateListing(ctx, fields)
	if err != nil {
		return nil, fmt.Errorf("create listing: %w", err)
	}
	if len(files) == 0 {
		return &AddResult{Listing: created}, nil
	}
	id, err := created.ID()
	if err != nil {
		return &AddResult{Listing: created}, err
	}
	res, err := s.attach(ctx, id, created, files)
	if err != nil {
		log.Error().Err(err).Int64("listing_id", id).Msg("listing persisted without images")
		return &AddResult{Listing: created}, fmt.Errorf("%w: %v", ErrImagePhaseFailed, err)
	}
	return res, nil
}

func (s *Session) attach(ctx context.Context, listingID int64, listing Listing, files []images.Blob) (*AddResult, error) {
	res := &AddResult{Listing: listing, Rejected: map[string]string{}}

	valid := make([]images.Blob, 0, len(files))
	for _, f := range files {
		v := images.Validate(&images.FileInfo{Name: f.Name, ContentType: f.ContentType, Size: f.Size()})
		if !v.Valid {
			res.Rejected[f.Name] = v.Reason
			continue
		}
		valid = append(valid, f)
	}
	if len(valid) == 0 {
		return res, nil
	}

	slots, err := images.Allocate(listing.OccupiedSlots(), len(valid))
	if err != nil {
		return nil, err
	}
	batch := make(map[string]images.Blob, len(valid))
	for i, slot := range slots {
		batch[images.SlotKey(slot)] = valid[i]
	}

	uploaded, err := s.Orchestrator.Upload(ctx, strconv.FormatInt(listingID, 10), batch)
	if err != nil {
		return nil, err
	}
	res.URLs = uploaded.URLs
	res.Failed = uploaded.Failed

	patch := make(map[string]interface{}, len(uploaded.URLs))
	for k, v := range uploaded.URLs {
		patch[k] = v
	}
	updated, err := s.API.PatchListing(ctx, listingID, patch)
	if err != nil {
		return nil, fmt.Errorf("save image URLs: %w", err)
	}
	res.Listing = updated
	return res, nil
}
