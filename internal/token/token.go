package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	gojose "github.com/go-jose/go-jose/v4"
	gojwt "github.com/go-jose/go-jose/v4/jwt"
)

// Verification failures. Handlers collapse both to the same HTTP status, but
// callers that need to distinguish (logging, tests) can use errors.Is.
var (
	ErrExpired = errors.New("token expired")
	ErrInvalid = errors.New("token invalid")
)

// Claims is the custom JWT payload carried alongside the registered claims.
type Claims struct {
	UserID string `json:"userId"`
}

// Codec signs and verifies bearer tokens with a process-wide HMAC secret.
// Rotating the secret invalidates every outstanding token.
type Codec struct {
	secret []byte
	ttl    time.Duration
}

// NewCodec constructs a Codec. The ttl bounds token lifetime from issuance.
func NewCodec(secret []byte, ttl time.Duration) *Codec {
	return &Codec{secret: secret, ttl: ttl}
}

// Issue produces a signed token embedding the subject identifier with
// issued-at and expiry claims.
func (c *Codec) Issue(userID string) (string, error) {
	signer, err := gojose.NewSigner(
		gojose.SigningKey{Algorithm: gojose.HS256, Key: c.secret},
		(&gojose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", fmt.Errorf("new signer: %w", err)
	}

	now := time.Now().UTC()
	std := gojwt.Claims{
		Subject:  userID,
		IssuedAt: gojwt.NewNumericDate(now),
		Expiry:   gojwt.NewNumericDate(now.Add(c.ttl)),
	}

	raw, err := gojwt.Signed(signer).Claims(std).Claims(Claims{UserID: userID}).Serialize()
	if err != nil {
		return "", fmt.Errorf("serialize jwt: %w", err)
	}
	return raw, nil
}

// Verify validates the signature and expiry, returning the subject user ID.
func (c *Codec) Verify(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", ErrInvalid
	}

	parsed, err := gojwt.ParseSigned(raw, []gojose.SignatureAlgorithm{gojose.HS256})
	if err != nil {
		return "", ErrInvalid
	}

	var std gojwt.Claims
	var custom Claims
	if err := parsed.Claims(c.secret, &std, &custom); err != nil {
		return "", ErrInvalid
	}

	if err := std.Validate(gojwt.Expected{Time: time.Now().UTC()}); err != nil {
		if errors.Is(err, gojwt.ErrExpired) {
			return "", ErrExpired
		}
		return "", ErrInvalid
	}

	userID := custom.UserID
	if userID == "" {
		userID = std.Subject
	}
	if userID == "" {
		return "", ErrInvalid
	}
	return userID, nil
}
