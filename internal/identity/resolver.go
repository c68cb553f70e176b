package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"netwatch/internal/domain"
)

const maxResponseBytes = 1 << 20

// HTTPResolver resolves the host's public identity from an IP-geolocation
// JSON endpoint. Field names vary across services, so extraction is tolerant:
// the first non-empty candidate key wins.
type HTTPResolver struct {
	url    string
	client *http.Client
}

func NewHTTPResolver(url string, timeout time.Duration) *HTTPResolver {
	return &HTTPResolver{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (r *HTTPResolver) Resolve(ctx context.Context) (domain.Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("error building identity request: %w", err)
	}
	req.Header.Set("User-Agent", "netwatch/1.0")

	resp, err := r.client.Do(req)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("identity lookup failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return domain.Identity{}, fmt.Errorf("error reading identity response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.Identity{}, fmt.Errorf("identity lookup returned status %d", resp.StatusCode)
	}

	return parseIdentity(body)
}

func parseIdentity(body []byte) (domain.Identity, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return domain.Identity{}, fmt.Errorf("error parsing identity response: %w", err)
	}

	identity := domain.Identity{
		Address:     pickString(raw, "query", "ip", "ip_address", "address"),
		Country:     pickString(raw, "country", "country_name"),
		CountryCode: pickString(raw, "countryCode", "country_code", "cc"),
		City:        pickString(raw, "city", "town"),
		ISP:         pickString(raw, "isp", "org", "organization", "as_org"),
	}
	if identity.Address == "" {
		return domain.Identity{}, errors.New("identity response has no address field")
	}
	return identity, nil
}

func pickString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k].(string); ok {
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		}
	}
	return ""
}
