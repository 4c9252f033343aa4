package uploads

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"

	"starauto-backend/internal/application/images"
	uploadsvc "starauto-backend/internal/application/uploads"
	"starauto-backend/internal/middleware"
	"starauto-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// Handlers bundles upload handlers with the service.
type Handlers struct {
	Service *uploadsvc.Service
}

// UploadImages POST /api/upload-images (multipart: listingId + image1..image20)
func (h *Handlers) UploadImages(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return response.BadRequest(c, "Expected multipart/form-data", nil)
	}
	listingID := first(form.Value["listingId"])

	var parts []uploadsvc.Part
	for n := 1; n <= images.MaxSlots; n++ {
		key := images.SlotKey(n)
		fhs := form.File[key]
		if len(fhs) == 0 {
			continue
		}
		if fhs[0].Size > images.MaxFileBytes {
			log.Warn().Str("slot", key).Int64("size", fhs[0].Size).Msg("image part exceeds size limit, skipping")
			continue
		}
		data, err := readPart(fhs[0])
		if err != nil {
			log.Warn().Err(err).Str("slot", key).Msg("unreadable image part, skipping")
			continue
		}
		parts = append(parts, uploadsvc.Part{
			SlotKey: key,
			Blob:    images.Blob{Name: fhs[0].Filename, ContentType: fhs[0].Header.Get("Content-Type"), Data: data},
		})
	}

	urls, err := h.Service.StoreBatch(c.UserContext(), listingID, parts)
	if err != nil {
		if errors.Is(err, uploadsvc.ErrListingRequired) || errors.Is(err, uploadsvc.ErrNoImages) {
			return response.BadRequest(c, err.Error(), nil)
		}
		log.Error().Err(err).Str("trace_id", middleware.GetTraceID(c)).Msg("upload images failed")
		return response.Internal(c, "Failed to upload images", nil)
	}
	return c.JSON(fiber.Map{"success": true, "urls": urls, "count": len(urls)})
}

// DeleteImage DELETE /api/delete-image?path=cars/42/image1.jpg
func (h *Handlers) DeleteImage(c *fiber.Ctx) error {
	err := h.Service.DeleteImage(c.UserContext(), c.Query("path"))
	switch {
	case err == nil:
		return c.JSON(fiber.Map{"success": true, "message": "Image deleted successfully"})
	case errors.Is(err, uploadsvc.ErrPathRequired), errors.Is(err, uploadsvc.ErrInvalidPath):
		return response.BadRequest(c, err.Error(), nil)
	default:
		log.Error().Err(err).Str("trace_id", middleware.GetTraceID(c)).Str("path", c.Query("path")).Msg("Error deleting image")
		return response.Internal(c, "Failed to delete image", nil)
	}
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, images.MaxFileBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > images.MaxFileBytes {
		return nil, fmt.Errorf("part %q is larger than %d bytes", fh.Filename, images.MaxFileBytes)
	}
	return data, nil
}

func first(vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}
