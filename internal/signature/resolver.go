package signature

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
)

// UnknownIP is recorded when the signer's address cannot be determined.
const UnknownIP = "unknown"

// IPResolver looks up the public address of the signing party.
type IPResolver interface {
	ResolveIP(ctx context.Context) (string, error)
}

// NoopResolver never resolves, so captures record UnknownIP unless the
// request carried the client address.
type NoopResolver struct{}

func (NoopResolver) ResolveIP(context.Context) (string, error) {
	return "", fmt.Errorf("ip lookup disabled")
}

// HTTPResolver queries a JSON endpoint such as https://api.ipify.org?format=json.
// Plain-text responses holding just the address are accepted too.
type HTTPResolver struct {
	URL  string
	HTTP *http.Client
}

func NewHTTPResolver(url string) *HTTPResolver {
	return &HTTPResolver{URL: url, HTTP: &http.Client{}}
}

func (r *HTTPResolver) ResolveIP(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.URL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("ip lookup returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", err
	}
	candidate := strings.TrimSpace(string(body))
	var out struct {
		IP string `json:"ip"`
	}
	if json.Unmarshal(body, &out) == nil && out.IP != "" {
		candidate = out.IP
	}
	if net.ParseIP(candidate) == nil {
		return "", fmt.Errorf("ip lookup returned an invalid address")
	}
	return candidate, nil
}
