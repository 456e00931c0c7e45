package auth

import (
	"errors"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// Session roles carried in access tokens.
const (
	RoleStudent   = "student"
	RoleFaculty   = "faculty"
	RoleDeptAdmin = "dept_admin"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims identifies the portal account behind an access token.
type Claims struct {
	OwnerID string `json:"owner_id"`
	Role    string `json:"role"`
	jwtlib.RegisteredClaims
}

type Service struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func New(secret string, ttl time.Duration) *Service {
	return &Service{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// GenerateToken signs an HS256 access token. The portal's login flow issues these; the upload
// service only needs it for tooling and tests.
func (s *Service) GenerateToken(ownerID, role string) (string, error) {
	now := s.now()
	claims := Claims{
		OwnerID: ownerID,
		Role:    role,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   ownerID,
			ExpiresAt: jwtlib.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwtlib.NewNumericDate(now),
		},
	}

	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *Service) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwtlib.ParseWithClaims(tokenStr, &Claims{}, func(t *jwtlib.Token) (any, error) {
		return s.secret, nil
	},
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || claims.OwnerID == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
