package api

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"

	"github.com/openwaitlist/waitlist/pkg/config"
)

const AuthHeaderKey = "Authorization"

// AuthHandler validates bearer tokens issued by the portal's realm against
// its JWKS endpoint.
type AuthHandler struct {
	jwks   *keyfunc.JWKS
	issuer string
	log    *zap.SugaredLogger
}

// NewAuth fetches the realm JWKS and keeps it refreshed hourly.
//
// TLS handling for the JWKS fetch: a configured CA PEM wins, otherwise
// InsecureSkipVerify may be enabled for dev setups, otherwise system roots.
func NewAuth(log *zap.SugaredLogger, cfg config.Keycloak) (*AuthHandler, error) {
	options := keyfunc.Options{
		RefreshInterval: time.Hour,
		RefreshTimeout:  time.Second * 10,
		RefreshErrorHandler: func(err error) {
			log.Errorf("failed to refresh JWKS configuration: %v", err)
		},
	}

	if cfg.CertificateAuthority != "" {
		pool := x509.NewCertPool()
		if ok := pool.AppendCertsFromPEM([]byte(cfg.CertificateAuthority)); !ok {
			return nil, errors.New("could not parse certificateAuthority PEM from configuration")
		}
		transport := &http.Transport{TLSClientConfig: &tls.Config{RootCAs: pool}}
		options.Client = &http.Client{Transport: transport}
	} else if cfg.InsecureSkipVerify {
		transport := &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}} //nolint:gosec
		options.Client = &http.Client{Transport: transport}
		log.Warn("keycloak.insecureSkipVerify=true: TLS certificate verification for JWKS is DISABLED (dev only)")
	}

	url := fmt.Sprintf("%s/protocol/openid-connect/certs", cfg.Authority())
	jwks, err := keyfunc.Get(url, options)
	if err != nil {
		return nil, fmt.Errorf("could not get JWKS from %s: %w", url, err)
	}

	return &AuthHandler{jwks: jwks, issuer: cfg.Authority(), log: log}, nil
}

// NewAuthWithJWKS wires a pre-built JWKS, used by tests.
func NewAuthWithJWKS(log *zap.SugaredLogger, jwks *keyfunc.JWKS, issuer string) *AuthHandler {
	return &AuthHandler{jwks: jwks, issuer: issuer, log: log}
}

// Middleware rejects requests without a valid bearer token and annotates the
// gin context with the caller's identity (user_id, username, email).
func (a *AuthHandler) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(AuthHeaderKey)
		if header == "" {
			a.unauthorized(c, "missing authorization header")
			return
		}
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			a.unauthorized(c, "authorization header is not a bearer token")
			return
		}

		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(raw, claims, a.jwks.Keyfunc,
			jwt.WithValidMethods([]string{"RS256", "ES256"}),
		)
		if err != nil || !token.Valid {
			a.log.Debugw("Rejected bearer token", "error", err)
			a.unauthorized(c, "invalid token")
			return
		}
		if a.issuer != "" {
			if iss, _ := claims["iss"].(string); iss != a.issuer {
				a.unauthorized(c, "unknown token issuer")
				return
			}
		}

		if sub, _ := claims["sub"].(string); sub != "" {
			c.Set("user_id", sub)
		}
		if username, _ := claims["preferred_username"].(string); username != "" {
			c.Set("username", username)
		}
		if email, _ := claims["email"].(string); email != "" {
			c.Set("email", email)
		}

		c.Next()
	}
}

func (a *AuthHandler) unauthorized(c *gin.Context, reason string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": reason})
}
