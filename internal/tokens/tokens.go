package tokens

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/open-zaak/open-zaak/backend/go-services/pkg/middleware"
)

// DefaultIssuer is used when no issuer is given.
const DefaultIssuer = "testsuite"

var ErrUnknownClient = errors.New("unknown client_id")

// Claims are the claims of a ZGW client token.
type Claims struct {
	ClientID           string `json:"client_id"`
	UserID             string `json:"user_id"`
	UserRepresentation string `json:"user_representation"`
	jwt.RegisteredClaims
}

// Options tweak a generated token.
type Options struct {
	Issuer             string
	UserID             string
	UserRepresentation string
	TTL                time.Duration
	Now                func() time.Time
}

// Generate creates an HS256 signed ZGW token for clientID.
func Generate(clientID, secret string, opts Options) (string, error) {
	if clientID == "" || secret == "" {
		return "", errors.New("client_id and secret are required")
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	issuer := opts.Issuer
	if issuer == "" {
		issuer = DefaultIssuer
	}
	issuedAt := now()
	claims := Claims{
		ClientID:           clientID,
		UserID:             opts.UserID,
		UserRepresentation: opts.UserRepresentation,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   issuer,
			IssuedAt: jwt.NewNumericDate(issuedAt),
		},
	}
	if opts.TTL > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(issuedAt.Add(opts.TTL))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// AuthorizationHeader returns "Bearer <token>" for outgoing requests and tests.
func AuthorizationHeader(clientID, secret string, opts Options) (string, error) {
	tok, err := Generate(clientID, secret, opts)
	if err != nil {
		return "", err
	}
	return "Bearer " + tok, nil
}

// SecretStore returns the shared secret of a client.
type SecretStore interface {
	Secret(ctx context.Context, clientID string) (string, error)
}

// SecretFunc adapts a function to SecretStore.
type SecretFunc func(ctx context.Context, clientID string) (string, error)

func (f SecretFunc) Secret(ctx context.Context, clientID string) (string, error) { return f(ctx, clientID) }

// Verifier checks incoming ZGW tokens against per-client secrets.
type Verifier struct {
	Secrets SecretStore
	Leeway  time.Duration
}

func NewVerifier(secrets SecretStore, leeway time.Duration) *Verifier {
	return &Verifier{Secrets: secrets, Leeway: leeway}
}

// Parse verifies raw and returns its claims.
func (v *Verifier) Parse(ctx context.Context, raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		c, ok := t.Claims.(*Claims)
		if !ok || c.ClientID == "" {
			return nil, errors.New("client_id claim missing")
		}
		secret, err := v.Secrets.Secret(ctx, c.ClientID)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownClient, c.ClientID)
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithLeeway(v.Leeway), jwt.WithIssuedAt())
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// Verify satisfies middleware.Verifier.
func (v *Verifier) Verify(ctx context.Context, raw string) (middleware.Token, error) {
	claims, err := v.Parse(ctx, raw)
	if err != nil {
		return nil, err
	}
	return &verifiedToken{claims: claims}, nil
}

type verifiedToken struct {
	claims *Claims
}

func (t *verifiedToken) Claims(v interface{}) error {
	b, err := json.Marshal(t.claims)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}
