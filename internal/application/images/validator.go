package images

import (
	"strings"
)

// MaxFileBytes is the ceiling for a single selected photo (phone originals included).
const MaxFileBytes = 10 << 20

var acceptedTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/webp": true,
	"image/heic": true,
	"image/heif": true,
}

var acceptedExtensions = []string{".jpg", ".jpeg", ".png", ".webp", ".heic", ".heif"}

// Rejection reasons.
const (
	ReasonMissing     = "No file provided"
	ReasonTooLarge    = "File size too large. Maximum size is 10MB."
	ReasonInvalidType = "Invalid file type. Only JPEG, PNG, WebP and HEIC images are allowed."
)

// FileInfo is what the validator needs to know about a candidate file.
type FileInfo struct {
	Name        string
	ContentType string
	Size        int64
}

// ValidationResult reports accept/reject plus the reason for a reject.
type ValidationResult struct {
	Valid  bool
	Reason string
}

// Validate is deliberately permissive: a rejected phone photo is worse than a
// bad file reaching the normalizer, which checks decodability on its own.
func Validate(f *FileInfo) ValidationResult {
	if f == nil {
		return ValidationResult{Reason: ReasonMissing}
	}
	if f.Size > MaxFileBytes {
		return ValidationResult{Reason: ReasonTooLarge}
	}
	ct := strings.ToLower(strings.TrimSpace(f.ContentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if ct != "" && acceptedTypes[ct] {
		return ValidationResult{Valid: true}
	}
	name := strings.ToLower(f.Name)
	for _, ext := range acceptedExtensions {
		if strings.HasSuffix(name, ext) {
			return ValidationResult{Valid: true}
		}
	}
	// some mobile capture flows post no MIME type at all
	if ct == "" && f.Size > 0 {
		return ValidationResult{Valid: true}
	}
	return ValidationResult{Reason: ReasonInvalidType}
}
