package mw

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// jwksCache caches the JWKS per realm to avoid fetching on every request.
var jwksCache = &sync.Map{}

type cachedJWKS struct {
	keys    map[string]*rsa.PublicKey
	fetchAt time.Time
}

const jwksTTL = 5 * time.Minute

const adminRole = "admin"

// AdminAuth validates the Bearer token against the identity provider's JWKS
// and requires the admin role. The authenticated user ID is stored in
// echo.Context for downstream use.
func AdminAuth(authBaseURL, realm string) echo.MiddlewareFunc {
	jwksURL := fmt.Sprintf("%s/realms/%s/protocol/openid-connect/certs", authBaseURL, realm)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}
			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

			claims := jwt.MapClaims{}
			token, err := jwt.ParseWithClaims(tokenStr, claims, keyfuncFor(jwksURL))
			if err != nil || !token.Valid {
				log.Warn().Err(err).Msg("admin token verification failed")
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			if !hasRole(claims, adminRole) {
				return echo.NewHTTPError(http.StatusForbidden, "admin role required")
			}

			userID, _ := claims["sub"].(string)
			c.Set("userID", userID)
			return next(c)
		}
	}
}

// keyfuncFor resolves the RSA public key for a token's kid from the cached
// JWKS.
func keyfuncFor(jwksURL string) jwt.Keyfunc {
	return func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("token missing kid header")
		}

		keys, err := loadJWKS(jwksURL)
		if err != nil {
			return nil, err
		}
		key, ok := keys[kid]
		if !ok {
			return nil, fmt.Errorf("no JWKS key for kid %q", kid)
		}
		return key, nil
	}
}

func loadJWKS(jwksURL string) (map[string]*rsa.PublicKey, error) {
	if cached, ok := jwksCache.Load(jwksURL); ok {
		entry := cached.(*cachedJWKS)
		if time.Since(entry.fetchAt) < jwksTTL {
			return entry.keys, nil
		}
	}

	resp, err := http.Get(jwksURL) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("fetch jwks: %w", err)
	}
	defer resp.Body.Close()

	var jwks struct {
		Keys []struct {
			Kid string `json:"kid"`
			Kty string `json:"kty"`
			N   string `json:"n"`
			E   string `json:"e"`
		} `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return nil, fmt.Errorf("decode jwks: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey)
	for _, k := range jwks.Keys {
		if k.Kty != "RSA" {
			continue
		}
		pub, err := parseRSAKey(k.N, k.E)
		if err != nil {
			log.Warn().Err(err).Str("kid", k.Kid).Msg("skipping unparsable JWKS key")
			continue
		}
		keys[k.Kid] = pub
	}

	jwksCache.Store(jwksURL, &cachedJWKS{keys: keys, fetchAt: time.Now()})
	return keys, nil
}

func parseRSAKey(n, e string) (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(n)
	if err != nil {
		return nil, fmt.Errorf("decode modulus: %w", err)
	}
	eb, err := base64.RawURLEncoding.DecodeString(e)
	if err != nil {
		return nil, fmt.Errorf("decode exponent: %w", err)
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nb),
		E: int(new(big.Int).SetBytes(eb).Int64()),
	}, nil
}

// hasRole checks the realm_access.roles claim for the given role.
func hasRole(claims jwt.MapClaims, role string) bool {
	realmAccess, _ := claims["realm_access"].(map[string]any)
	roles, _ := realmAccess["roles"].([]any)
	for _, r := range roles {
		if s, ok := r.(string); ok && s == role {
			return true
		}
	}
	return false
}
