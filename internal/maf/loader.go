package maf

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Loader retrieves the hierarchical MAF document for an application name
// (§6.4: "retrieved by application name").
type Loader interface {
	Load(ctx context.Context, appName string) (*Document, error)
}

// HTTPLoader fetches the MAF document from an external configuration
// service over HTTP: a plain *http.Client with a base URL and bearer
// token, no generated SDK.
type HTTPLoader struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

// NewHTTPLoader builds an HTTPLoader with sane client defaults.
func NewHTTPLoader(baseURL, token string) *HTTPLoader {
	return &HTTPLoader{
		BaseURL: baseURL,
		Token:   token,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Load fetches and decodes the MAF document for appName.
func (l *HTTPLoader) Load(ctx context.Context, appName string) (*Document, error) {
	url := fmt.Sprintf("%s/maf/config?app=%s", l.BaseURL, appName)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("maf: build request: %w", err)
	}
	if l.Token != "" {
		req.Header.Set("Authorization", "Bearer "+l.Token)
	}

	resp, err := l.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("maf: fetch config: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("maf: unexpected status %d: %s", resp.StatusCode, body)
	}

	var doc Document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("maf: decode config: %w", err)
	}
	return &doc, nil
}

// StaticLoader serves a fixed, in-memory document — used in tests and any
// deployment that manages MAF documents as local files rather than a
// remote service.
type StaticLoader struct {
	Doc *Document
}

// Load returns the static document regardless of appName.
func (l *StaticLoader) Load(_ context.Context, _ string) (*Document, error) {
	if l.Doc == nil {
		return nil, fmt.Errorf("maf: static loader has no document configured")
	}
	return l.Doc, nil
}

// FindSite returns the named site's config from a document, or nil if absent.
func FindSite(doc *Document, siteID string) *SiteConfig {
	for _, s := range doc.Sites {
		if s.SiteID == siteID {
			return NewSiteConfig(s)
		}
	}
	return nil
}
