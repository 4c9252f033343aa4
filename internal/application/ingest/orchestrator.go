package ingest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"starauto-backend/internal/application/images"

	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"
)

const (
	DefaultNormalizeTimeout = 2 * time.Second
	DefaultInterFileDelay   = 100 * time.Millisecond
)

var (
	ErrNoFiles           = errors.New("no files to upload")
	ErrNoUsableFiles     = errors.New("no file could be prepared for upload")
	ErrNothingUploaded   = errors.New("no images were uploaded")
	ErrUnexpectedSlotURL = errors.New("upload returned an unexpected URL")
)

// Part is one prepared file in a batch.
type Part struct {
	SlotKey string
	Blob    images.Blob
}

// Transport submits one assembled batch and returns slotKey -> public URL
// for whatever the server stored.
type Transport interface {
	SubmitBatch(ctx context.Context, listingID string, parts []Part) (map[string]string, error)
}

// BatchResult is the outcome of a batch that stored at least one file.
type BatchResult struct {
	URLs   map[string]string
	Failed []string // slot keys with no usable URL, ascending
	Err    error    // per-slot causes, combined
}

// Orchestrator prepares files one at a time and submits them as one batch.
type Orchestrator struct {
	Normalizer  images.Normalizer
	Constraints images.Constraints
	Transport   Transport
	Timeout     time.Duration
	Delay       time.Duration

	// Sleep waits between files; tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewOrchestrator wires the JPEG normalizer with the default limits.
func NewOrchestrator(t Transport) *Orchestrator {
	return &Orchestrator{
		Normalizer:  images.JPEGNormalizer{},
		Constraints: images.DefaultConstraints(),
		Transport:   t,
		Timeout:     DefaultNormalizeTimeout,
		Delay:       DefaultInterFileDelay,
	}
}

// Upload normalizes files sequentially in slot order and submits them in a
// single request. Returned URLs are checked against the stored-image shape.
func (o *Orchestrator) Upload(ctx context.Context, listingID string, files map[string]images.Blob) (*BatchResult, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	keys, err := orderedSlotKeys(files)
	if err != nil {
		return nil, err
	}

	var errs error
	parts := make([]Part, 0, len(keys))
	for i, key := range keys {
		blob, err := o.prepare(ctx, key, files[key])
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Error().Err(err).Str("slot", key).Msg("dropping file from batch")
			errs = multierr.Append(errs, err)
		} else {
			parts = append(parts, Part{SlotKey: key, Blob: blob})
		}
		if i < len(keys)-1 && o.Delay > 0 {
			if err := o.sleep(ctx, o.Delay); err != nil {
				return nil, err
			}
		}
	}
	if len(parts) == 0 {
		return nil, multierr.Append(ErrNoUsableFiles, errs)
	}

	returned, err := o.Transport.SubmitBatch(ctx, listingID, parts)
	if err != nil {
		return nil, fmt.Errorf("submit batch: %w", err)
	}

	urls := make(map[string]string, len(returned))
	for _, key := range keys {
		u, ok := returned[key]
		if !ok {
			continue
		}
		if !images.IsStoredImageURL(u) {
			log.Warn().Str("slot", key).Str("url", u).Msg("discarding URL with unexpected shape")
			errs = multierr.Append(errs, fmt.Errorf("%w: %s", ErrUnexpectedSlotURL, key))
			continue
		}
		urls[key] = u
	}

	var failed []string
	for _, key := range keys {
		if _, ok := urls[key]; !ok {
			failed = append(failed, key)
		}
	}
	if len(urls) == 0 {
		return nil, multierr.Append(ErrNothingUploaded, errs)
	}
	return &BatchResult{URLs: urls, Failed: failed, Err: errs}, nil
}

// prepare races the normalizer against the per-file deadline. A timeout or
// a soft failure sends the original bytes relabeled; only a file that can
// neither be decoded nor fit the budget is dropped.
func (o *Orchestrator) prepare(ctx context.Context, key string, in images.Blob) (images.Blob, error) {
	nctx, cancel := context.WithTimeout(ctx, o.timeout())
	defer cancel()

	type outcome struct {
		blob images.Blob
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("normalize %s: panic: %v", key, r)}
			}
		}()
		b, err := o.Normalizer.Normalize(nctx, in, o.Constraints)
		done <- outcome{blob: b, err: err}
	}()

	select {
	case res := <-done:
		if res.err == nil {
			return res.blob, nil
		}
		if errors.Is(res.err, images.ErrUndecodableOverBudget) {
			return images.Blob{}, fmt.Errorf("%s: %w", key, res.err)
		}
		if ctx.Err() != nil {
			return images.Blob{}, ctx.Err()
		}
		log.Warn().Err(res.err).Str("slot", key).Msg("normalize failed, sending original relabeled")
		return images.Relabel(in), nil
	case <-nctx.Done():
		if ctx.Err() != nil {
			return images.Blob{}, ctx.Err()
		}
		log.Warn().Str("slot", key).Dur("timeout", o.timeout()).Msg("normalize timed out, sending original relabeled")
		return images.Relabel(in), nil
	}
}

func (o *Orchestrator) timeout() time.Duration {
	if o.Timeout > 0 {
		return o.Timeout
	}
	return DefaultNormalizeTimeout
}

func (o *Orchestrator) sleep(ctx context.Context, d time.Duration) error {
	if o.Sleep != nil {
		return o.Sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func orderedSlotKeys(files map[string]images.Blob) ([]string, error) {
	type slotted struct {
		key string
		n   int
	}
	list := make([]slotted, 0, len(files))
	for key := range files {
		n, err := images.ParseSlotKey(key)
		if err != nil {
			return nil, err
		}
		list = append(list, slotted{key, n})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].n < list[j].n })
	keys := make([]string, len(list))
	for i, s := range list {
		keys[i] = s.key
	}
	return keys, nil
}
