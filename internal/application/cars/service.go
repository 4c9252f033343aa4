package cars

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"starauto-backend/internal/application/images"
	"starauto-backend/internal/config"
	"starauto-backend/internal/domain"
	"starauto-backend/internal/infrastructure/storage"
	"starauto-backend/internal/metrics"
	"starauto-backend/internal/pkg/validation"

	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Service is the listing persistence gateway over the cars table.
type Service struct {
	DB             *gorm.DB
	Blobs          storage.BlobStore
	Metrics        *metrics.Metrics
	ImageURLPolicy string // config.ImageURLPolicyWarn (default) or config.ImageURLPolicyStrict
	Now            func() time.Time
}

// createRules are the server-side requirements for a new listing.
type createRules struct {
	Make    *string `json:"make" validate:"required,min=1"`
	Model   *string `json:"model" validate:"required,min=1"`
	Year    *int    `json:"year" validate:"required,gte=1886,lte=2100"`
	Price   *int    `json:"price" validate:"required,gte=0"`
	Mileage *int    `json:"mileage" validate:"required,gte=0"`
	Seats   *int    `json:"seats" validate:"required,gte=0"`
	Doors   *int    `json:"doors" validate:"required,gte=0"`
	VIN     string  `json:"vin" validate:"omitempty,max=17"`
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Create inserts a listing from a camelCase body and returns the stored row.
func (s *Service) Create(ctx context.Context, body map[string]interface{}, actor string) (*domain.Car, error) {
	cols, err := s.prepare(body)
	if err != nil {
		return nil, err
	}
	if v, _ := cols["safety"].(string); strings.TrimSpace(v) == "" {
		cols["safety"] = "Certified"
	}

	view := domain.FromColumns(cols)
	var rules createRules
	if err := remarshal(view, &rules); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidField, err)
	}
	if err := validation.Struct(&rules); err != nil {
		return nil, err
	}
	var car domain.Car
	if err := remarshal(view, &car); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidField, err)
	}

	tx := s.DB.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if _, given := cols["stock_id"]; !given {
		var last int
		if err := tx.Model(&domain.Car{}).Select("COALESCE(MAX(stock_id), 0)").Scan(&last).Error; err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("next stock id: %w", err)
		}
		car.StockID = last + 1
	}
	if car.WeeklySpecial {
		if err := tx.Model(&domain.Car{}).Where("weekly_special = ?", true).Update("weekly_special", false).Error; err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("clear weekly special: %w", err)
		}
	}
	if err := tx.Create(&car).Error; err != nil {
		tx.Rollback()
		log.Error().Err(err).Interface("payload", cols).Msg("create car failed")
		return nil, fmt.Errorf("Failed to create car: %w", err)
	}
	if err := s.appendEvent(tx, car.ListingID, domain.CarEventCreated, actor, car.View()); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("Failed to create car: %w", err)
	}
	s.Metrics.IncCarWrite("create")
	return &car, nil
}

// Get returns one listing or ErrNotFound.
func (s *Service) Get(ctx context.Context, listingID int64) (*domain.Car, error) {
	var car domain.Car
	if err := s.DB.WithContext(ctx).Where("listing_id = ?", listingID).First(&car).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &car, nil
}

// List returns every listing, newest stock first.
func (s *Service) List(ctx context.Context) ([]domain.Car, error) {
	var cars []domain.Car
	if err := s.DB.WithContext(ctx).Order("stock_id DESC").Order("listing_id DESC").Find(&cars).Error; err != nil {
		return nil, fmt.Errorf("Failed to fetch cars: %w", err)
	}
	return cars, nil
}

// LastStockID returns the highest stock id, or 0 for an empty inventory.
func (s *Service) LastStockID(ctx context.Context) (int, error) {
	var last int
	if err := s.DB.WithContext(ctx).Model(&domain.Car{}).Select("COALESCE(MAX(stock_id), 0)").Scan(&last).Error; err != nil {
		return 0, fmt.Errorf("Failed to fetch last car: %w", err)
	}
	return last, nil
}

// WeeklySpecial returns the featured listing, or nil when none is flagged.
func (s *Service) WeeklySpecial(ctx context.Context) (*domain.Car, error) {
	var cars []domain.Car
	if err := s.DB.WithContext(ctx).Where("weekly_special = ?", true).Order("listing_id").Limit(1).Find(&cars).Error; err != nil {
		return nil, fmt.Errorf("Failed to fetch weekly special: %w", err)
	}
	if len(cars) == 0 {
		return nil, nil
	}
	return &cars[0], nil
}

// Update applies a partial camelCase body. Setting weeklySpecial=true clears
// the flag on every other row in the same statement and transaction.
func (s *Service) Update(ctx context.Context, listingID int64, body map[string]interface{}, actor string) (*domain.Car, error) {
	if len(body) == 0 {
		return nil, ErrEmptyUpdate
	}
	cols, err := s.prepare(body)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, ErrEmptyUpdate
	}
	attempted := domain.FromColumns(cols)

	tx := s.DB.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	var existing domain.Car
	if err := tx.Where("listing_id = ?", listingID).First(&existing).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if featured, ok := cols["weekly_special"].(bool); ok && featured {
		err := tx.Model(&domain.Car{}).
			Where("weekly_special = ? OR listing_id = ?", true, listingID).
			Update("weekly_special", gorm.Expr("CASE WHEN listing_id = ? THEN ? ELSE ? END", listingID, true, false)).Error
		if err != nil {
			tx.Rollback()
			log.Error().Err(err).Int64("listing_id", listingID).Msg("set weekly special failed")
			return nil, fmt.Errorf("Failed to update car: %w", err)
		}
		delete(cols, "weekly_special")
	}
	if len(cols) > 0 {
		cols["updated_at"] = s.now()
		if err := tx.Model(&domain.Car{}).Where("listing_id = ?", listingID).Updates(cols).Error; err != nil {
			tx.Rollback()
			log.Error().Err(err).Int64("listing_id", listingID).Interface("payload", attempted).Msg("update car failed")
			return nil, fmt.Errorf("Failed to update car: %w", err)
		}
	}

	var updated domain.Car
	if err := tx.Where("listing_id = ?", listingID).First(&updated).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("Failed to update car: %w", err)
	}
	if err := s.appendEvent(tx, listingID, domain.CarEventUpdated, actor, attempted); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("Failed to update car: %w", err)
	}
	s.Metrics.IncCarWrite("update")
	return &updated, nil
}

// Delete removes the row, then its photos. Photo cleanup is best effort.
func (s *Service) Delete(ctx context.Context, listingID int64, actor string) error {
	tx := s.DB.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	var car domain.Car
	if err := tx.Where("listing_id = ?", listingID).First(&car).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	if err := tx.Where("listing_id = ?", listingID).Delete(&domain.Car{}).Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("Failed to delete car: %w", err)
	}
	paths := imagePaths(&car)
	if err := s.appendEvent(tx, listingID, domain.CarEventDeleted, actor, map[string]interface{}{
		"stockId": car.StockID,
		"paths":   paths,
	}); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("Failed to delete car: %w", err)
	}
	s.Metrics.IncCarWrite("delete")

	if len(paths) > 0 && s.Blobs != nil {
		if err := s.Blobs.Remove(ctx, paths...); err != nil {
			s.Metrics.IncCleanupFailure()
			log.Error().Err(err).Int64("listing_id", listingID).Strs("paths", paths).Msg("Error deleting car images")
		}
	}
	return nil
}

// Events returns the audit trail for a listing, newest first.
func (s *Service) Events(ctx context.Context, listingID int64) ([]domain.CarEvent, error) {
	var events []domain.CarEvent
	if err := s.DB.WithContext(ctx).Where("listing_id = ?", listingID).Order("created_at DESC").Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// ListImageless returns listings older than grace that still have no photo,
// i.e. two-phase creates whose image step never landed.
func (s *Service) ListImageless(ctx context.Context, grace time.Duration) ([]domain.Car, error) {
	q := s.DB.WithContext(ctx).Where("created_at < ?", s.now().Add(-grace))
	for n := 1; n <= domain.MaxImageSlots; n++ {
		col := domain.ImageColumn(n)
		q = q.Where(fmt.Sprintf("(%s IS NULL OR %s = '')", col, col))
	}
	var cars []domain.Car
	if err := q.Order("created_at").Find(&cars).Error; err != nil {
		return nil, err
	}
	return cars, nil
}

// prepare coerces a camelCase body into column values. Unknown, read-only
// and null entries are dropped; image entries are cleaned.
func (s *Service) prepare(body map[string]interface{}) (map[string]interface{}, error) {
	cols := make(map[string]interface{}, len(body))
	for key, raw := range body {
		f, ok := domain.FieldByJSON(key)
		if !ok || f.ReadOnly || raw == nil {
			continue
		}
		if f.Image {
			url, keep, err := s.cleanImage(key, raw)
			if err != nil {
				return nil, err
			}
			if keep {
				cols[f.Column] = url
			}
			continue
		}
		v, err := f.Coerce(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidField, key)
		}
		cols[f.Column] = v
	}
	return cols, nil
}

// cleanImage drops empty values, never persists page-local blob references,
// and applies the URL-shape policy to everything else.
func (s *Service) cleanImage(key string, raw interface{}) (string, bool, error) {
	url, ok := raw.(string)
	if !ok {
		return "", false, fmt.Errorf("%w: %s", ErrInvalidField, key)
	}
	url = strings.TrimSpace(url)
	switch {
	case url == "":
		return "", false, nil
	case images.IsEphemeralReference(url):
		log.Error().Str("field", key).Str("value", url).Msg("Rejected blob URL")
		return "", false, nil
	case !images.LooksLikeBlobStoreURL(url):
		if s.ImageURLPolicy == config.ImageURLPolicyStrict {
			return "", false, fmt.Errorf("%w: %s", ErrImageURLPolicy, key)
		}
		log.Warn().Str("field", key).Str("value", url).Msg("Invalid image URL format")
	}
	return url, true, nil
}

func (s *Service) appendEvent(tx *gorm.DB, listingID int64, eventType, actor string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", eventType, err)
	}
	ev := &domain.CarEvent{
		ListingID: listingID,
		EventType: eventType,
		EventData: datatypes.JSON(payload),
		CreatedAt: s.now(),
	}
	if actor != "" {
		ev.Actor = &actor
	}
	if err := tx.Create(ev).Error; err != nil {
		return fmt.Errorf("Failed to create car event: %w", err)
	}
	return nil
}

func imagePaths(car *domain.Car) []string {
	var paths []string
	for n := 1; n <= domain.MaxImageSlots; n++ {
		if p, ok := images.ObjectPathFromURL(car.Image(n)); ok {
			paths = append(paths, p)
		}
	}
	return paths
}

func remarshal(in interface{}, out interface{}) error {
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}
