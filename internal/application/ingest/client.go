package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"
)

// APIError is a non-2xx answer from the inventory API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status %d: %s", e.Status, e.Message)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// Client talks to the inventory HTTP API with an admin access token.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

// Listing is the camelCase JSON view of a car.
type Listing map[string]interface{}

// ID returns listingId as an int64.
func (l Listing) ID() (int64, error) {
	switch v := l["listingId"].(type) {
	case float64:
		return int64(v), nil
	case json.Number:
		return v.Int64()
	}
	return 0, errors.New("listing has no numeric listingId")
}

// OccupiedSlots returns the slots holding a non-empty URL.
func (l Listing) OccupiedSlots() map[int]bool {
	out := map[int]bool{}
	for n := 1; n <= 20; n++ {
		if s, _ := l["image"+strconv.Itoa(n)].(string); s != "" {
			out[n] = true
		}
	}
	return out
}

func (c *Client) GetListing(ctx context.Context, listingID int64) (Listing, error) {
	var out Listing
	err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/api/%d", listingID), nil, &out)
	return out, err
}

func (c *Client) PatchListing(ctx context.Context, listingID int64, body map[string]interface{}) (Listing, error) {
	var out Listing
	err := c.doJSON(ctx, http.MethodPatch, fmt.Sprintf("/api/%d", listingID), body, &out)
	return out, err
}

func (c *Client) CreateListing(ctx context.Context, body map[string]interface{}) (Listing, error) {
	var out Listing
	err := c.doJSON(ctx, http.MethodPost, "/api/createCar", body, &out)
	return out, err
}

func (c *Client) LastStockID(ctx context.Context) (int, error) {
	var out struct {
		LastCarID int `json:"lastCarId"`
	}
	err := c.doJSON(ctx, http.MethodGet, "/api/findLastCar", nil, &out)
	return out.LastCarID, err
}

// SubmitBatch posts the parts as one multipart/form-data request to
// /api/upload-images, so *Client is the HTTP Transport.
func (c *Client) SubmitBatch(ctx context.Context, listingID string, parts []Part) (map[string]string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("listingId", listingID); err != nil {
		return nil, err
	}
	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, p.SlotKey, p.Blob.Name))
		h.Set("Content-Type", p.Blob.ContentType)
		w, err := mw.CreatePart(h)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(p.Blob.Data); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/upload-images", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out struct {
		Success bool              `json:"success"`
		URLs    map[string]string `json:"urls"`
		Count   int               `json:"count"`
	}
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return out.URLs, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(b)
	}
	req, err := c.newRequest(ctx, method, path, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.BaseURL, "/")+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out interface{}) error {
	hc := c.HTTP
	if hc == nil {
		hc = &http.Client{Timeout: 2 * time.Minute}
	}
	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(data, &e)
		if e.Error == "" {
			e.Error = strings.TrimSpace(string(data))
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", req.Method, req.URL.Path, err)
	}
	return nil
}
