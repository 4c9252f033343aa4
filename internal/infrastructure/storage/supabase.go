package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Supabase is a BlobStore backed by the Supabase Storage REST API.
type Supabase struct {
	BaseURL   string
	SecretKey string
	Bucket    string
	Client    *http.Client
}

// Put uploads with upsert so re-uploading a slot replaces the previous photo.
func (s *Supabase) Put(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	url := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.base(), s.Bucket, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	s.authorize(req)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "true")
	req.Header.Set("Cache-Control", "max-age=3600")

	if err := s.do(req); err != nil {
		return "", fmt.Errorf("upload %s: %w", path, err)
	}
	return publicURL(s.base(), s.Bucket, path), nil
}

// Remove deletes all paths with one bulk request.
func (s *Supabase) Remove(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	body, _ := json.Marshal(map[string][]string{"prefixes": paths})
	url := fmt.Sprintf("%s/storage/v1/object/%s", s.base(), s.Bucket)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	s.authorize(req)
	req.Header.Set("Content-Type", "application/json")

	if err := s.do(req); err != nil {
		return fmt.Errorf("remove %d object(s): %w", len(paths), err)
	}
	return nil
}

func (s *Supabase) base() string {
	return strings.TrimRight(s.BaseURL, "/")
}

// authorize sets both apikey and Bearer, as supabase-js does.
func (s *Supabase) authorize(req *http.Request) {
	req.Header.Set("apikey", s.SecretKey)
	req.Header.Set("Authorization", "Bearer "+s.SecretKey)
}

func (s *Supabase) do(req *http.Request) error {
	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("supabase request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		bodyStr := string(respBody)
		if (resp.StatusCode == 400 || resp.StatusCode == 403) &&
			(strings.Contains(bodyStr, "Invalid Compact JWS") || strings.Contains(bodyStr, "Unauthorized")) {
			return fmt.Errorf("supabase storage requires the service_role key, not the anon key (raw body: %s)", bodyStr)
		}
		return fmt.Errorf("supabase error: status %d body: %s", resp.StatusCode, bodyStr)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
