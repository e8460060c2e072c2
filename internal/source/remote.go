package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/arborlang/modlink/internal/export"
)

// RemoteSource fetches a manifest list of export descriptors from an
// HTTP endpoint, coalescing concurrent fetches of the same URL.
type RemoteSource struct {
	client *http.Client
	group  singleflight.Group
}

// NewRemoteSource builds a RemoteSource. A nil client gets a default
// with a conservative timeout.
func NewRemoteSource(client *http.Client) *RemoteSource {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	return &RemoteSource{client: client}
}

// Fetch retrieves and decodes the manifest list at url. Concurrent
// Fetch calls for the same url share one in-flight HTTP request.
func (r *RemoteSource) Fetch(ctx context.Context, url string) ([]export.Descriptor, error) {
	v, err, _ := r.group.Do(url, func() (interface{}, error) {
		return r.fetch(ctx, url)
	})
	if err != nil {
		return nil, err
	}

	return v.([]export.Descriptor), nil
}

func (r *RemoteSource) fetch(ctx context.Context, url string) ([]export.Descriptor, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("source: build request for %s: %w", url, err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("source: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("source: fetch %s: unexpected status %s", url, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("source: read body from %s: %w", url, err)
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("source: decode manifest list from %s: %w", url, err)
	}

	out := make([]export.Descriptor, 0, len(raw))

	for _, msg := range raw {
		d, err := Parse(msg)
		if err != nil {
			return nil, err
		}

		out = append(out, d)
	}

	return out, nil
}
