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

// Supabase stores contract files in a Supabase Storage bucket over its REST
// API. The key is sent both as `apikey` and as a bearer token, which works for
// service_role JWTs and for sb_secret_ keys.
type Supabase struct {
	baseURL string // https://<project>.supabase.co
	apiKey  string
	bucket  string
	client  *http.Client
}

func NewSupabase(baseURL, apiKey, bucket string) *Supabase {
	return &Supabase{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		bucket:  bucket,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// APIError is a non-2xx answer from the Storage API.
type APIError struct {
	Op     string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("supabase %s error: %d %s | %s", e.Op, e.Status, http.StatusText(e.Status), e.Body)
}

func (s *Supabase) api(path string) string { return s.baseURL + "/storage/v1" + path }

func (s *Supabase) objectURL(key string) string {
	return s.api("/object/" + s.bucket + "/" + key)
}

func (s *Supabase) newRequest(ctx context.Context, method, url string, body io.Reader, header http.Header) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	return req, nil
}

// call sends req and returns the response for 2xx answers. A 404 becomes
// ErrNotFound; anything else non-2xx becomes an *APIError.
func (s *Supabase) call(op string, req *http.Request) (*http.Response, error) {
	res, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("supabase %s: %w", op, err)
	}
	if res.StatusCode < 300 {
		return res, nil
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("supabase %s: %w", op, ErrNotFound)
	}
	b, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
	return nil, &APIError{Op: op, Status: res.StatusCode, Body: strings.TrimSpace(string(b))}
}

// do builds and sends a request in one step.
func (s *Supabase) do(ctx context.Context, op, method, url string, body io.Reader, header http.Header) (*http.Response, error) {
	req, err := s.newRequest(ctx, method, url, body, header)
	if err != nil {
		return nil, err
	}
	return s.call(op, req)
}

func jsonBody(v any) (io.Reader, http.Header) {
	b, _ := json.Marshal(v)
	return bytes.NewReader(b), http.Header{"Content-Type": {"application/json"}}
}

// Upload writes the object with upsert on, so regenerated PDFs replace the
// previous render under the same key.
func (s *Supabase) Upload(ctx context.Context, key string, r io.Reader, contentType string, size int64) (Object, error) {
	req, err := s.newRequest(ctx, http.MethodPost, s.objectURL(key), r, http.Header{
		"Content-Type": {contentType},
		"X-Upsert":     {"true"},
	})
	if err != nil {
		return Object{}, err
	}
	if size > 0 {
		req.ContentLength = size
	}
	res, err := s.call("upload", req)
	if err != nil {
		return Object{}, err
	}
	res.Body.Close()

	return Object{
		Key: key,
		URL: s.api("/object/authenticated/" + s.bucket + "/" + key),
	}, nil
}

// SignedURL asks the API to sign a download link valid for ttl.
func (s *Supabase) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	body, h := jsonBody(map[string]int{"expiresIn": int(ttl.Seconds())})
	res, err := s.do(ctx, "sign", http.MethodPost, s.api("/object/sign/"+s.bucket+"/"+key), body, h)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	var out struct {
		SignedURL string `json:"signedURL"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("supabase sign: decode: %w", err)
	}
	if out.SignedURL == "" {
		return "", fmt.Errorf("supabase sign: empty signedURL")
	}
	// relative to /storage/v1
	return s.api(out.SignedURL), nil
}

// Delete removes one object. A missing object counts as deleted.
func (s *Supabase) Delete(ctx context.Context, key string) error {
	res, err := s.do(ctx, "delete", http.MethodDelete, s.objectURL(key), nil, nil)
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return err
	}
	res.Body.Close()
	return nil
}

// BulkDelete removes several objects in one request.
func (s *Supabase) BulkDelete(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	body, h := jsonBody(map[string][]string{"prefixes": keys})
	res, err := s.do(ctx, "bulk delete", http.MethodDelete, s.api("/object/"+s.bucket), body, h)
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return err
	}
	res.Body.Close()
	return nil
}
