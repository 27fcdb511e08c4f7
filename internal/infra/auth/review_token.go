package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"discord-storefront/internal/domain"
	"discord-storefront/internal/domain/ports/adapter"
)

var _ adapter.ReviewTokenIssuer = (*ReviewTokens)(nil)

const reviewAudience = "review"

type reviewClaims struct {
	BuyerID string `json:"buyer_id"`
	jwt.RegisteredClaims
}

// ReviewTokens mints the link sent with a delivery notice. Single use is enforced by
// the one-review-per-order constraint, not by the token.
type ReviewTokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewReviewTokens(secret string, ttl time.Duration) *ReviewTokens {
	return &ReviewTokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (r *ReviewTokens) Issue(orderID, buyerID string) (string, error) {
	if orderID == "" || buyerID == "" {
		return "", domain.ErrInvalidArgument
	}
	now := r.now()
	claims := reviewClaims{
		BuyerID: buyerID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   orderID,
			Audience:  jwt.ClaimStrings{reviewAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(r.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(r.secret)
}

func (r *ReviewTokens) Verify(token string) (*adapter.ReviewClaims, error) {
	if token == "" {
		return nil, domain.ErrInvalidToken
	}
	claims := &reviewClaims{}
	tkn, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return r.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(reviewAudience),
		jwt.WithTimeFunc(r.now),
	)
	if err != nil || !tkn.Valid || claims.Subject == "" || claims.BuyerID == "" {
		return nil, domain.ErrInvalidToken
	}
	return &adapter.ReviewClaims{OrderID: claims.Subject, BuyerID: claims.BuyerID}, nil
}
