package images

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultBucket is the public blob-store bucket that holds listing photos.
const DefaultBucket = "car-images"

var (
	storedURLPattern  = regexp.MustCompile(`^https://[^/]+/storage/v1/object/public/car-images/cars/[^/]+/image([1-9]|1[0-9]|20)\.jpg$`)
	bucketPathPattern = regexp.MustCompile(`/car-images/(.+)$`)
)

// ObjectPath is where slot slotKey of a listing lives inside the bucket.
func ObjectPath(listingID, slotKey string) string {
	return fmt.Sprintf("cars/%s/%s.jpg", listingID, slotKey)
}

// IsStoredImageURL reports whether u has the exact shape of a stored listing photo.
func IsStoredImageURL(u string) bool {
	return storedURLPattern.MatchString(u)
}

// LooksLikeBlobStoreURL is the looser check used when accepting PATCH bodies.
func LooksLikeBlobStoreURL(u string) bool {
	return strings.Contains(u, "/storage/v1/object/public/"+DefaultBucket)
}

// ObjectPathFromURL strips everything up to and including the bucket root.
func ObjectPathFromURL(u string) (string, bool) {
	m := bucketPathPattern.FindStringSubmatch(u)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// IsEphemeralReference reports page-local object URLs that are never retrievable later.
func IsEphemeralReference(v string) bool {
	return strings.HasPrefix(strings.TrimSpace(v), "blob:")
}
