// internal/common/auth/verifier.go
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"demo-backend/internal/common/config"
	"demo-backend/internal/common/errors"
	"demo-backend/internal/common/logger"

	"github.com/redis/go-redis/v9"
)

// Identity is the stable caller identity yielded by the access boundary.
type Identity struct {
	UserID string `json:"userId"`
	Email  string `json:"email,omitempty"`
}

// Verifier authenticates a bearer token and resolves the caller identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// KeycloakVerifier validates bearer tokens against Keycloak's userinfo
// endpoint. Verified identities are cached in redis under the token hash so
// repeated calls within the TTL skip the round trip.
type KeycloakVerifier struct {
	baseURL    string
	realm      string
	httpClient *http.Client
	cache      *redis.Client
	cacheTTL   time.Duration
	logger     logger.Logger
}

func NewKeycloakVerifier(cfg config.AuthConfig, cache *redis.Client, log logger.Logger) *KeycloakVerifier {
	return &KeycloakVerifier{
		baseURL:    strings.TrimSuffix(cfg.Keycloak.URL, "/"),
		realm:      cfg.Keycloak.Realm,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		cache:      cache,
		cacheTTL:   time.Duration(cfg.CacheTTL) * time.Second,
		logger:     log,
	}
}

func cacheKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "auth:token:" + hex.EncodeToString(sum[:])
}

func (v *KeycloakVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, errors.NewAuthenticationError("missing bearer token")
	}

	key := cacheKey(token)
	if v.cache != nil {
		if cached, err := v.cache.Get(ctx, key).Result(); err == nil {
			var identity Identity
			if err := json.Unmarshal([]byte(cached), &identity); err == nil {
				return &identity, nil
			}
		}
	}

	identity, err := v.fetchIdentity(ctx, token)
	if err != nil {
		return nil, err
	}

	if v.cache != nil {
		payload, _ := json.Marshal(identity)
		if err := v.cache.Set(ctx, key, string(payload), v.cacheTTL).Err(); err != nil {
			v.logger.Warn("failed to cache verified identity", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	return identity, nil
}

func (v *KeycloakVerifier) fetchIdentity(ctx context.Context, token string) (*Identity, error) {
	userinfoURL := fmt.Sprintf("%s/realms/%s/protocol/openid-connect/userinfo", v.baseURL, v.realm)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, userinfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewAuthenticationError(fmt.Sprintf("userinfo request failed: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, errors.NewAuthenticationError(
			fmt.Sprintf("userinfo returned status %d: %s", resp.StatusCode, string(body)))
	}

	var userinfo struct {
		Sub   string `json:"sub"`
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&userinfo); err != nil {
		return nil, errors.NewAuthenticationError(fmt.Sprintf("failed to decode userinfo: %v", err))
	}

	if userinfo.Sub == "" {
		return nil, errors.NewAuthenticationError("userinfo response missing subject")
	}

	return &Identity{UserID: userinfo.Sub, Email: userinfo.Email}, nil
}
