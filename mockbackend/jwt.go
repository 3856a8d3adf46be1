package mockbackend

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

const DefaultTokenTTL = 24 * time.Hour

// Claims mirrors the token payload issued by the production backend.
type Claims struct {
	UserID int `json:"user_id"`
	jwt.RegisteredClaims
}

type JwtCreator interface {
	CreateToken(userId int) (string, error)
	ParseToken(token string) (*Claims, error)
}

// HmacJwtCreator issues and validates HS256 session tokens.
type HmacJwtCreator struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewHmacJwtCreator(secret string, issuer string, ttl time.Duration) (*HmacJwtCreator, error) {
	if secret == "" {
		return nil, errors.New("jwt secret must not be empty")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &HmacJwtCreator{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

func (jc *HmacJwtCreator) CreateToken(userId int) (string, error) {
	now := jc.now()
	claims := Claims{
		UserID: userId,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    jc.issuer,
			Subject:   strconv.Itoa(userId),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(jc.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(jc.secret)
}

// ParseToken verifies the signature and expiry of token.
func (jc *HmacJwtCreator) ParseToken(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return jc.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
