package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"starauto-backend/internal/application/images"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const storeBase = "https://abc.supabase.co/storage/v1/object/public/car-images/cars/"

type fakeNormalizer struct {
	fail  map[string]error // by input name
	block map[string]bool
}

func (f *fakeNormalizer) Normalize(ctx context.Context, in images.Blob, _ images.Constraints) (images.Blob, error) {
	if f.block[in.Name] {
		<-ctx.Done()
		return images.Blob{}, ctx.Err()
	}
	if err := f.fail[in.Name]; err != nil {
		return images.Blob{}, err
	}
	return images.Blob{Name: "n-" + in.Name, ContentType: "image/jpeg", Data: []byte("normalized")}, nil
}

type fakeTransport struct {
	mu    sync.Mutex
	calls int
	parts []Part
	urls  func(listingID string, parts []Part) map[string]string
	err   error
}

func (f *fakeTransport) SubmitBatch(_ context.Context, listingID string, parts []Part) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.parts = append(f.parts, parts...)
	if f.err != nil {
		return nil, f.err
	}
	if f.urls != nil {
		return f.urls(listingID, parts), nil
	}
	out := map[string]string{}
	for _, p := range parts {
		out[p.SlotKey] = storeBase + listingID + "/" + p.SlotKey + ".jpg"
	}
	return out, nil
}

func blob(name string) images.Blob {
	return images.Blob{Name: name, ContentType: "image/heic", Data: []byte("raw-" + name)}
}

func newTestOrchestrator(n images.Normalizer, tr Transport) (*Orchestrator, *[]time.Duration) {
	var sleeps []time.Duration
	o := NewOrchestrator(tr)
	o.Normalizer = n
	o.Sleep = func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	return o, &sleeps
}

func TestUpload_OneHardFailureDropsOnlyThatSlot(t *testing.T) {
	tr := &fakeTransport{}
	norm := &fakeNormalizer{fail: map[string]error{"c.heic": images.ErrUndecodableOverBudget}}
	o, sleeps := newTestOrchestrator(norm, tr)

	res, err := o.Upload(context.Background(), "42", map[string]images.Blob{
		"image1": blob("a.heic"),
		"image2": blob("b.heic"),
		"image3": blob("c.heic"),
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"image1": storeBase + "42/image1.jpg",
		"image2": storeBase + "42/image2.jpg",
	}, res.URLs)
	assert.Equal(t, []string{"image3"}, res.Failed)
	assert.ErrorIs(t, res.Err, images.ErrUndecodableOverBudget)

	assert.Equal(t, 1, tr.calls)
	require.Len(t, tr.parts, 2)
	assert.Equal(t, "image1", tr.parts[0].SlotKey)
	assert.Equal(t, "image2", tr.parts[1].SlotKey)
	assert.Equal(t, []time.Duration{DefaultInterFileDelay, DefaultInterFileDelay}, *sleeps)
}

func TestUpload_SoftFailureAndTimeoutSendOriginal(t *testing.T) {
	tr := &fakeTransport{}
	norm := &fakeNormalizer{
		fail:  map[string]error{"a.heic": errors.New("decoder crashed")},
		block: map[string]bool{"b.heic": true},
	}
	o, _ := newTestOrchestrator(norm, tr)
	o.Timeout = 20 * time.Millisecond

	res, err := o.Upload(context.Background(), "7", map[string]images.Blob{
		"image4": blob("a.heic"),
		"image9": blob("b.heic"),
	})
	require.NoError(t, err)
	assert.Len(t, res.URLs, 2)
	assert.Empty(t, res.Failed)

	require.Len(t, tr.parts, 2)
	for _, p := range tr.parts {
		assert.Equal(t, "image/jpeg", p.Blob.ContentType)
		assert.Contains(t, string(p.Blob.Data), "raw-")
	}
	assert.Equal(t, "a.jpg", tr.parts[0].Blob.Name)
	assert.Equal(t, "b.jpg", tr.parts[1].Blob.Name)
}

func TestUpload_DiscardsUnexpectedURLs(t *testing.T) {
	tr := &fakeTransport{urls: func(id string, _ []Part) map[string]string {
		return map[string]string{
			"image1": storeBase + id + "/image1.jpg",
			"image2": "https://cdn.example/elsewhere.jpg",
		}
	}}
	o, _ := newTestOrchestrator(&fakeNormalizer{}, tr)

	res, err := o.Upload(context.Background(), "3", map[string]images.Blob{"image1": blob("a"), "image2": blob("b")})
	require.NoError(t, err)
	assert.Equal(t, []string{"image2"}, res.Failed)
	assert.ErrorIs(t, res.Err, ErrUnexpectedSlotURL)
}

func TestUpload_Errors(t *testing.T) {
	o, _ := newTestOrchestrator(&fakeNormalizer{}, &fakeTransport{})
	_, err := o.Upload(context.Background(), "1", nil)
	assert.ErrorIs(t, err, ErrNoFiles)

	_, err = o.Upload(context.Background(), "1", map[string]images.Blob{"cover": blob("a")})
	assert.ErrorIs(t, err, images.ErrInvalidSlotKey)

	tr := &fakeTransport{}
	o, _ = newTestOrchestrator(&fakeNormalizer{fail: map[string]error{"a": images.ErrUndecodableOverBudget}}, tr)
	_, err = o.Upload(context.Background(), "1", map[string]images.Blob{"image1": blob("a")})
	assert.ErrorIs(t, err, ErrNoUsableFiles)
	assert.Equal(t, 0, tr.calls)

	o, _ = newTestOrchestrator(&fakeNormalizer{}, &fakeTransport{urls: func(string, []Part) map[string]string { return nil }})
	_, err = o.Upload(context.Background(), "1", map[string]images.Blob{"image1": blob("a")})
	assert.ErrorIs(t, err, ErrNothingUploaded)

	o, _ = newTestOrchestrator(&fakeNormalizer{}, &fakeTransport{err: errors.New("offline")})
	_, err = o.Upload(context.Background(), "1", map[string]images.Blob{"image1": blob("a")})
	assert.ErrorContains(t, err, "offline")
}

type fakeInventory struct {
	gets    int
	listing Listing
	patches []map[string]interface{}
	created map[string]interface{}
}

func (f *fakeInventory) GetListing(_ context.Context, id int64) (Listing, error) {
	f.gets++
	return f.listing, nil
}

func (f *fakeInventory) PatchListing(_ context.Context, id int64, body map[string]interface{}) (Listing, error) {
	f.patches = append(f.patches, body)
	out := Listing{}
	for k, v := range f.listing {
		out[k] = v
	}
	for k, v := range body {
		out[k] = v
	}
	return out, nil
}

func (f *fakeInventory) CreateListing(_ context.Context, body map[string]interface{}) (Listing, error) {
	f.created = body
	return f.listing, nil
}

func TestAddPhotos_TooManyFilesRejectedBeforeAnyCall(t *testing.T) {
	inv := &fakeInventory{listing: Listing{"listingId": float64(5)}}
	tr := &fakeTransport{}
	o, _ := newTestOrchestrator(&fakeNormalizer{}, tr)
	s := &Session{API: inv, Orchestrator: o}

	files := make([]images.Blob, 21)
	for i := range files {
		files[i] = blob(fmt.Sprintf("%d.jpg", i))
	}
	_, err := s.AddPhotos(context.Background(), 5, files)
	assert.ErrorIs(t, err, images.ErrTooManyFiles)
	assert.Equal(t, 0, inv.gets)
	assert.Equal(t, 0, tr.calls)
}

func TestAddPhotos_FillsLowestFreeSlots(t *testing.T) {
	inv := &fakeInventory{listing: Listing{
		"listingId": float64(5),
		"image1":    storeBase + "5/image1.jpg",
		"image3":    storeBase + "5/image3.jpg",
	}}
	tr := &fakeTransport{}
	o, _ := newTestOrchestrator(&fakeNormalizer{}, tr)
	s := &Session{API: inv, Orchestrator: o}

	pdf := images.Blob{Name: "brochure.pdf", ContentType: "application/pdf", Data: []byte("%PDF")}
	res, err := s.AddPhotos(context.Background(), 5, []images.Blob{blob("x.heic"), pdf, blob("y.heic")})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"brochure.pdf": images.ReasonInvalidType}, res.Rejected)
	assert.Equal(t, map[string]string{
		"image2": storeBase + "5/image2.jpg",
		"image4": storeBase + "5/image4.jpg",
	}, res.URLs)
	require.Len(t, inv.patches, 1)
	assert.Equal(t, storeBase+"5/image2.jpg", inv.patches[0]["image2"])
	assert.Equal(t, storeBase+"5/image4.jpg", res.Listing["image4"])
}

func TestAddPhotos_NotEnoughFreeSlots(t *testing.T) {
	listing := Listing{"listingId": float64(5)}
	for n := 1; n <= 19; n++ {
		listing[images.SlotKey(n)] = fmt.Sprintf("%s5/image%d.jpg", storeBase, n)
	}
	tr := &fakeTransport{}
	o, _ := newTestOrchestrator(&fakeNormalizer{}, tr)
	s := &Session{API: &fakeInventory{listing: listing}, Orchestrator: o}

	_, err := s.AddPhotos(context.Background(), 5, []images.Blob{blob("a.jpg"), blob("b.jpg")})
	assert.ErrorIs(t, err, images.ErrNotEnoughSlots)
	assert.Equal(t, 0, tr.calls)
}

func TestCreateWithPhotos_ImagePhaseFailureKeepsListing(t *testing.T) {
	inv := &fakeInventory{listing: Listing{"listingId": float64(11), "make": "Honda"}}
	o, _ := newTestOrchestrator(&fakeNormalizer{}, &fakeTransport{err: errors.New("offline")})
	s := &Session{API: inv, Orchestrator: o}

	res, err := s.CreateWithPhotos(context.Background(), map[string]interface{}{"make": "Honda"}, []images.Blob{blob("a.jpg")})
	assert.ErrorIs(t, err, ErrImagePhaseFailed)
	require.NotNil(t, res)
	assert.Equal(t, "Honda", res.Listing["make"])
	assert.Empty(t, inv.patches)
}

func TestClient_RoundTrips(t *testing.T) {
	var gotListingID string
	var gotParts []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/5":
			_, _ = w.Write([]byte(`{"listingId":5,"make":"Honda","image2":"` + storeBase + `5/image2.jpg"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/api/6":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"Car not found"}`))
		case r.Method == http.MethodPatch && r.URL.Path == "/api/5":
			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			body["listingId"] = 5
			_ = json.NewEncoder(w).Encode(body)
		case r.Method == http.MethodGet && r.URL.Path == "/api/findLastCar":
			_, _ = w.Write([]byte(`{"lastCarId":41}`))
		case r.Method == http.MethodPost && r.URL.Path == "/api/upload-images":
			require.NoError(t, r.ParseMultipartForm(1<<20))
			gotListingID = r.FormValue("listingId")
			for key, fhs := range r.MultipartForm.File {
				f, _ := fhs[0].Open()
				data, _ := io.ReadAll(f)
				gotParts = append(gotParts, key+"="+string(data)+"|"+fhs[0].Header.Get("Content-Type"))
			}
			_, _ = w.Write([]byte(`{"success":true,"urls":{"image1":"` + storeBase + `5/image1.jpg"},"count":1}`))
		default:
			w.WriteHeader(http.StatusTeapot)
		}
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, Token: "tok", HTTP: srv.Client()}
	ctx := context.Background()

	l, err := c.GetListing(ctx, 5)
	require.NoError(t, err)
	id, err := l.ID()
	require.NoError(t, err)
	assert.Equal(t, int64(5), id)
	assert.Equal(t, map[int]bool{2: true}, l.OccupiedSlots())

	_, err = c.GetListing(ctx, 6)
	assert.True(t, IsNotFound(err))

	l, err = c.PatchListing(ctx, 5, map[string]interface{}{"sold": true})
	require.NoError(t, err)
	assert.Equal(t, true, l["sold"])

	last, err := c.LastStockID(ctx)
	require.NoError(t, err)
	assert.Equal(t, 41, last)

	urls, err := c.SubmitBatch(ctx, "5", []Part{{SlotKey: "image1", Blob: images.Blob{Name: "a.jpg", ContentType: "image/jpeg", Data: []byte("jpg")}}})
	require.NoError(t, err)
	assert.Equal(t, storeBase+"5/image1.jpg", urls["image1"])
	assert.Equal(t, "5", gotListingID)
	assert.Equal(t, []string{"image1=jpg|image/jpeg"}, gotParts)
}
