package scenery

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bintoss/backend/internal/config"
	"github.com/bintoss/backend/internal/logging"
)

// Client talks to the external generative service that produces scene
// backgrounds and chat replies. Both operations are strictly best-effort:
// every failure is converted to a fallback at this boundary and never
// reaches the simulation loop.
type Client struct {
	baseURL          string
	apiKey           string
	rdb              *redis.Client
	httpClient       *http.Client
	rateLimitSeconds int
	cacheHours       int
}

// ResolutionTiers are the accepted background resolution requests.
var ResolutionTiers = map[string]bool{"1K": true, "2K": true, "4K": true}

// ErrRateLimited is returned when a session requests backgrounds too fast.
var ErrRateLimited = errors.New("background generation rate limited")

// FallbackChatReply is shown when the chat service is unreachable.
const FallbackChatReply = "Sorry, I can't chat right now. Keep tossing!"

// Default package-level client (set from main on startup)
var Default *Client

// SetDefault sets the package Default client.
func SetDefault(c *Client) {
	Default = c
}

// NewClient constructs a scenery client. Returns nil if not configured.
func NewClient(cfg *config.Config, rdb *redis.Client) *Client {
	if cfg == nil || cfg.SceneryBaseURL == "" || cfg.SceneryAPIKey == "" {
		return nil
	}

	return &Client{
		baseURL:          strings.TrimRight(cfg.SceneryBaseURL, "/"),
		apiKey:           cfg.SceneryAPIKey,
		rdb:              rdb,
		httpClient:       &http.Client{Timeout: time.Duration(cfg.SceneryTimeoutSeconds) * time.Second},
		rateLimitSeconds: cfg.SceneryRateLimitSeconds,
		cacheHours:       cfg.SceneryCacheHours,
	}
}

// GenerateBackground resolves a scene description and resolution tier to an
// image URL. Results are cached per (prompt, tier) so a repeated description
// never costs a second generation.
func (c *Client) GenerateBackground(ctx context.Context, sessionToken, prompt, tier string) (string, error) {
	if c == nil {
		return "", errors.New("scenery client not configured")
	}
	if !ResolutionTiers[tier] {
		return "", fmt.Errorf("invalid resolution tier: %s", tier)
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt is empty")
	}

	cacheKey := "scenery_bg:" + promptDigest(prompt, tier)
	if c.rdb != nil {
		if url, err := c.rdb.Get(ctx, cacheKey).Result(); err == nil && url != "" {
			return url, nil
		}
	}

	// Rate limit per session
	if c.rdb != nil && c.rateLimitSeconds > 0 && sessionToken != "" {
		key := "scenery_rate:" + sessionToken
		ok, err := c.rdb.SetNX(ctx, key, "1", time.Duration(c.rateLimitSeconds)*time.Second).Result()
		if err == nil && !ok {
			return "", ErrRateLimited
		}
		// ignore Redis errors and proceed
	}

	payload := map[string]interface{}{
		"prompt":     prompt,
		"resolution": tier,
	}

	// Retry loop for transient errors
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		url, err := c.post(ctx, "/v1/images/generate", payload, "url")
		if err == nil {
			if c.rdb != nil && c.cacheHours > 0 {
				c.rdb.SetEx(ctx, cacheKey, url, time.Duration(c.cacheHours)*time.Hour)
			}
			return url, nil
		}
		lastErr = err
		time.Sleep(time.Duration(100+attempt*200) * time.Millisecond)
	}

	logging.S.Warnf("[SCENERY] Background generation failed: %v", lastErr)
	return "", lastErr
}

// Chat sends a free-text message to the assistant. Never returns an error to
// the caller's user: failures become the fallback reply.
func (c *Client) Chat(ctx context.Context, message string) string {
	if c == nil {
		return FallbackChatReply
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return FallbackChatReply
	}

	reply, err := c.post(ctx, "/v1/chat", map[string]interface{}{"message": message}, "reply")
	if err != nil {
		logging.S.Warnf("[SCENERY] Chat failed: %v", err)
		return FallbackChatReply
	}
	return reply
}

// post sends a JSON request and extracts a single string field from the
// response body.
func (c *Client) post(ctx context.Context, path string, payload map[string]interface{}, field string) (string, error) {
	b, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("scenery service returned %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("invalid scenery response: %w", err)
	}
	value, _ := parsed[field].(string)
	if value == "" {
		return "", fmt.Errorf("scenery response missing %q", field)
	}
	return value, nil
}

func promptDigest(prompt, tier string) string {
	h := sha1.Sum([]byte(tier + "|" + prompt))
	return hex.EncodeToString(h[:])
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
