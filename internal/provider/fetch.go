package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/couchcryptid/geocoder-bundle/internal/domain"
)

const maxBodyBytes = 4 << 20

// Fetch issues a GET request and returns the response body. Authentication
// failures map to domain.ErrInvalidCredentials, 429 to domain.ErrQuotaExceeded,
// and other non-200 statuses or an empty body to domain.ErrInvalidServerResponse.
func Fetch(ctx context.Context, client HTTPClient, rawURL string, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocode request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: status %d", domain.ErrInvalidCredentials, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: status %d", domain.ErrQuotaExceeded, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: status %d: %s", domain.ErrInvalidServerResponse, resp.StatusCode, body)
	case len(body) == 0:
		return nil, fmt.Errorf("%w: empty body", domain.ErrInvalidServerResponse)
	}
	return body, nil
}
