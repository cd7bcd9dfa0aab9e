package server

import (
	"context"
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"

	"github.com/gravitas-games/foundry/internal/config"
	"github.com/gravitas-games/foundry/pkg/models"
)

// tokenSubprotocol is the Sec-WebSocket-Protocol entry that precedes a
// token: "access_token, <token>".
const tokenSubprotocol = "access_token"

var (
	ErrTokenBlacklisted = errors.New("token is blacklisted")
	ErrNotActivated     = errors.New("user not activated")
	ErrBanned           = errors.New("user is banned")
)

// JWTValidator handles JWT token validation
type JWTValidator struct {
	config          config.JWTConfig
	blacklistPrefix string
	publicKey       *ecdsa.PublicKey
	keyMu           sync.RWMutex
	redis           *redis.Client
	httpClient      *http.Client
	logger          *slog.Logger
}

// Claims represents the JWT claims issued by the login server
type Claims struct {
	UserID      int64  `json:"user_id"`
	Email       string `json:"email"`
	Username    string `json:"username"`
	AuthMethod  string `json:"auth_method"`
	Permissions int64  `json:"permissions"`
	Activated   int64  `json:"activated"`
	jwt.RegisteredClaims
}

// NewJWTValidator fetches the signing key and refreshes it in the background
// until ctx is done. redisClient may be nil, which skips the blacklist.
func NewJWTValidator(ctx context.Context, cfg *config.Config, redisClient *redis.Client, logger *slog.Logger) (*JWTValidator, error) {
	v := &JWTValidator{
		config:          cfg.JWT,
		blacklistPrefix: cfg.Redis.BlacklistPrefix,
		redis:           redisClient,
		httpClient:      &http.Client{Timeout: 10 * time.Second},
		logger:          logger.With("component", "auth"),
	}

	if err := v.RefreshPublicKey(ctx); err != nil {
		return nil, fmt.Errorf("failed to fetch public key: %w", err)
	}

	go v.periodicKeyRefresh(ctx)

	v.logger.Info("JWT validator initialized", "issuer", cfg.JWT.Issuer)
	return v, nil
}

// RefreshPublicKey fetches the PEM-encoded ECDSA public key
func (v *JWTValidator) RefreshPublicKey(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.config.PublicKeyURL, nil)
	if err != nil {
		return err
	}
	resp, err := v.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch public key: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("public key endpoint returned status %d", resp.StatusCode)
	}

	keyData, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read public key: %w", err)
	}

	key, err := parseECDSAPublicKey(keyData)
	if err != nil {
		return err
	}

	v.keyMu.Lock()
	v.publicKey = key
	v.keyMu.Unlock()

	v.logger.Debug("public key refreshed", "url", v.config.PublicKeyURL)
	return nil
}

func parseECDSAPublicKey(data []byte) (*ecdsa.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("failed to decode PEM block")
	}
	pubKey, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	ecdsaKey, ok := pubKey.(*ecdsa.PublicKey)
	if !ok {
		return nil, errors.New("public key is not ECDSA")
	}
	return ecdsaKey, nil
}

// periodicKeyRefresh refreshes the public key until ctx is done
func (v *JWTValidator) periodicKeyRefresh(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(v.config.PublicKeyRefreshHrs) * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := v.RefreshPublicKey(ctx); err != nil {
				v.logger.Warn("failed to refresh public key", "error", err)
			}
		}
	}
}

// ValidateToken validates a JWT token and returns the observer it describes
func (v *JWTValidator) ValidateToken(ctx context.Context, tokenString string) (*models.Observer, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		v.keyMu.RLock()
		defer v.keyMu.RUnlock()
		return v.publicKey, nil
	},
		jwt.WithValidMethods([]string{"ES256", "ES384", "ES512"}),
		jwt.WithIssuer(v.config.Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	switch {
	case claims.Activated == -1:
		return nil, ErrBanned
	case claims.Activated <= 0:
		return nil, ErrNotActivated
	}

	userID := strconv.FormatInt(claims.UserID, 10)
	if v.redis != nil {
		n, err := v.redis.Exists(ctx, v.blacklistPrefix+userID).Result()
		if err != nil {
			// Do not lock observers out while Redis is down
			v.logger.Warn("failed to check blacklist", "error", err)
		} else if n > 0 {
			return nil, ErrTokenBlacklisted
		}
	}

	return &models.Observer{
		UserID:      userID,
		Username:    claims.Username,
		Email:       claims.Email,
		Permissions: claims.Permissions,
		Activated:   claims.Activated,
		AuthMethod:  claims.AuthMethod,
	}, nil
}

// extractTokenFromHeader finds the token in the websocket subprotocol
// header, the Authorization header, or the token query parameter, in that
// order.
func extractTokenFromHeader(r *http.Request) string {
	if protocols := r.Header.Get("Sec-WebSocket-Protocol"); protocols != "" {
		parts := strings.Split(protocols, ",")
		if len(parts) == 2 && strings.TrimSpace(parts[0]) == tokenSubprotocol {
			return strings.TrimSpace(parts[1])
		}
	}

	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok && token != "" {
		return token
	}

	return r.URL.Query().Get("token")
}
