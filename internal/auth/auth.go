package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/roadcall/roadcall/internal/core/domain"
)

// Claims bind a verified plate to a bearer token. The plate is the only
// identity the service knows; there are no persistent accounts.
type Claims struct {
	Plate string `json:"plate"`

	jwt.RegisteredClaims
}

type Tokens struct {
	Secret   []byte
	TokenTTL time.Duration
}

func (t Tokens) Issue(plate domain.Plate) (token string, expiresAt time.Time, err error) {
	now := time.Now().UTC()
	expiresAt = now.Add(t.TokenTTL)
	claims := Claims{
		Plate: plate.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "roadcall",
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now.Add(-5 * time.Second)),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return s, expiresAt, nil
}

func (t Tokens) Verify(token string) (domain.Plate, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(tok *jwt.Token) (any, error) {
		if tok.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return t.Secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Plate == "" {
		return "", fmt.Errorf("%w: invalid token", domain.ErrUnauthorized)
	}
	return domain.Plate(claims.Plate), nil
}
