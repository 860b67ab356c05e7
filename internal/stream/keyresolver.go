package stream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"go.uber.org/zap"
)

// userAgent is sent with the key page request; the source serves the key
// page to any generic browser UA.
const userAgent = "Mozilla/5.0"

// keyPattern matches the embedded connection token in the source page,
// accepting either quote style.
var keyPattern = regexp.MustCompile(`websocketKey\s*=\s*['"]([^'"]+)['"]`)

// KeyResolver obtains the short-lived websocket connection token by fetching
// the configured source page and extracting the embedded key. It never
// retries; the supervisor owns the retry policy.
type KeyResolver struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

// NewKeyResolver creates a resolver for the given source page URL.
func NewKeyResolver(url string, timeout time.Duration, logger *zap.Logger) *KeyResolver {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &KeyResolver{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Resolve fetches the source page and returns the embedded websocket key.
// All failure modes (request error, timeout, non-2xx status, pattern miss)
// wrap ErrKeyResolution.
func (r *KeyResolver) Resolve(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrKeyResolution, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrKeyResolution, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: unexpected status %s", ErrKeyResolution, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrKeyResolution, err)
	}

	match := keyPattern.FindSubmatch(body)
	if match == nil {
		return "", fmt.Errorf("%w: %w", ErrKeyResolution, ErrKeyNotFound)
	}

	key := string(match[1])
	r.logger.Debug("Websocket key resolved", zap.Int("key_length", len(key)))
	return key, nil
}
