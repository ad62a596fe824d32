package util

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/plaid/plaid-go/v41/plaid"
)

// Webhook verification follows https://plaid.com/docs/api/webhooks/webhook-verification/

const maxWebhookAge = 5 * time.Minute

type KeyFetcher interface {
	FetchWebhookKey(ctx context.Context, kid string) (*plaid.JWKPublicKey, error)
}

// WebhookVerifier checks the Plaid-Verification JWT on incoming webhooks.
// Keys are cached by kid for the life of the process.
type WebhookVerifier struct {
	keys KeyFetcher
	now  func() time.Time

	mu    sync.Mutex
	cache map[string]*plaid.JWKPublicKey
}

func NewWebhookVerifier(keys KeyFetcher) *WebhookVerifier {
	return &WebhookVerifier{
		keys:  keys,
		now:   time.Now,
		cache: make(map[string]*plaid.JWKPublicKey),
	}
}

func jwkToECDSAPublicKey(jwk *plaid.JWKPublicKey) (*ecdsa.PublicKey, error) {
	if jwk == nil || jwk.X == "" || jwk.Y == "" ||
		jwk.Kty != "EC" ||
		jwk.Crv != "P-256" {
		return nil, errors.New("invalid/unsupported JWK")
	}
	xBytes, err := base64.RawURLEncoding.DecodeString(jwk.X)
	if err != nil {
		return nil, fmt.Errorf("decode x: %w", err)
	}
	yBytes, err := base64.RawURLEncoding.DecodeString(jwk.Y)
	if err != nil {
		return nil, fmt.Errorf("decode y: %w", err)
	}
	return &ecdsa.PublicKey{
		Curve: elliptic.P256(),
		X:     new(big.Int).SetBytes(xBytes),
		Y:     new(big.Int).SetBytes(yBytes),
	}, nil
}

func (v *WebhookVerifier) Verify(ctx context.Context, body []byte, header http.Header) error {
	tokenString := header.Get("Plaid-Verification")
	if tokenString == "" {
		return errors.New("missing Plaid-Verification header")
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}),
		jwt.WithLeeway(30*time.Second),
		jwt.WithTimeFunc(v.now),
	)

	// The kid is needed before the signature can be checked.
	unverified, _, err := parser.ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return fmt.Errorf("parse unverified token: %w", err)
	}
	if unverified.Method.Alg() != jwt.SigningMethodES256.Alg() {
		return fmt.Errorf("unexpected alg %q (want ES256)", unverified.Method.Alg())
	}
	kid, _ := unverified.Header["kid"].(string)
	if kid == "" {
		return errors.New("missing kid in JWT header")
	}

	jwk, err := v.key(ctx, kid)
	if err != nil {
		return fmt.Errorf("get JWK: %w", err)
	}
	if expiredAt, ok := jwk.GetExpiredAtOk(); ok && expiredAt != nil {
		return fmt.Errorf("verification key %s has expired", kid)
	}
	pubKey, err := jwkToECDSAPublicKey(jwk)
	if err != nil {
		return fmt.Errorf("jwk->ecdsa: %w", err)
	}

	claims := jwt.MapClaims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return pubKey, nil
	})
	if err != nil || !token.Valid {
		return fmt.Errorf("invalid token: %w", err)
	}

	iat, err := claims.GetIssuedAt()
	if err != nil || iat == nil {
		return errors.New("missing iat")
	}
	if v.now().Sub(iat.Time) > maxWebhookAge {
		return errors.New("token too old (>5m)")
	}

	wantHash, ok := claims["request_body_sha256"].(string)
	if !ok || wantHash == "" {
		return errors.New("missing request_body_sha256")
	}
	sum := sha256.Sum256(body)
	gotHex := hex.EncodeToString(sum[:])
	if subtle.ConstantTimeCompare([]byte(gotHex), []byte(strings.ToLower(wantHash))) != 1 {
		return errors.New("body hash mismatch")
	}

	return nil
}

func (v *WebhookVerifier) key(ctx context.Context, kid string) (*plaid.JWKPublicKey, error) {
	v.mu.Lock()
	key, ok := v.cache[kid]
	v.mu.Unlock()
	if ok {
		return key, nil
	}

	key, err := v.keys.FetchWebhookKey(ctx, kid)
	if err != nil {
		return nil, err
	}
	if key.Kid == kid {
		v.mu.Lock()
		v.cache[kid] = key
		v.mu.Unlock()
	}
	return key, nil
}
