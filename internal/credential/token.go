package credential

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// TokenTTL is the fixed lifetime of an access token.
	TokenTTL = 7 * 24 * time.Hour

	// Issuer identifies tokens minted by this service.
	Issuer = "orgtenant"

	// DefaultSecret is the development secret refused by the strict startup check.
	DefaultSecret = "change-me-in-prod"

	// DefaultAlgorithm is used when no signing algorithm is configured.
	DefaultAlgorithm = "HS256"
)

var ErrInvalidToken = errors.New("invalid token")

var supportedAlgorithms = []string{"HS256", "HS384", "HS512"}

// Claims is the signed claim set carried by an access token.
// The subject is the admin ID.
type Claims struct {
	jwt.RegisteredClaims
	Email            string `json:"email"`
	OrganizationName string `json:"organization_name"`
	OrgID            string `json:"org_id"`
}

// TokenCodec issues and verifies symmetric-key signed access tokens.
type TokenCodec struct {
	secret []byte
	method jwt.SigningMethod
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenCodec creates a codec for the given secret and HMAC algorithm name
// (HS256, HS384 or HS512). An empty algorithm selects DefaultAlgorithm.
func NewTokenCodec(secret string, algorithm string) (*TokenCodec, error) {
	if secret == "" {
		return nil, errors.New("token signing secret not provided")
	}
	if algorithm == "" {
		algorithm = DefaultAlgorithm
	}
	if !slices.Contains(supportedAlgorithms, algorithm) {
		return nil, fmt.Errorf("unsupported signing algorithm %q", algorithm)
	}

	return &TokenCodec{
		secret: []byte(secret),
		method: jwt.GetSigningMethod(algorithm),
		ttl:    TokenTTL,
		now:    time.Now,
	}, nil
}

// Issue signs a token for the admin with the given claims; subject, issuer,
// issued-at and expiry are filled in here.
func (c *TokenCodec) Issue(subject string, claims Claims) (string, error) {
	now := c.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
	}

	token := jwt.NewWithClaims(c.method, &claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

// Verify checks the signature, algorithm and expiry of a token and returns its claims.
func (c *TokenCodec) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if !parsed.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
