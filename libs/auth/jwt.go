package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Roles carried in the role claim.
const (
	RoleOwner = "OWNER"
	RoleAdmin = "ADMIN"
	RoleStaff = "STAFF"
)

// Claims is the token payload issued by the identity service. TenantID
// scopes every request the bearer makes.
type Claims struct {
	TenantID string `json:"tenant_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Principal is the authenticated caller.
type Principal struct {
	UserID   string
	TenantID string
	Role     string
}

func (p Principal) HasRole(roles ...string) bool {
	for _, r := range roles {
		if strings.EqualFold(p.Role, r) {
			return true
		}
	}
	return false
}

// Verifier checks a bearer token and returns its principal.
type Verifier struct {
	keyFunc jwt.Keyfunc
	methods []string
	leeway  time.Duration
}

func NewHS256Verifier(secret string) *Verifier {
	key := []byte(secret)
	return &Verifier{
		keyFunc: func(*jwt.Token) (any, error) { return key, nil },
		methods: []string{jwt.SigningMethodHS256.Alg()},
		leeway:  30 * time.Second,
	}
}

// NewJWKSVerifier verifies RS256 tokens against keys published at a JWKS
// endpoint.
func NewJWKSVerifier(keys *JWKSClient) *Verifier {
	return &Verifier{
		keyFunc: keys.Keyfunc,
		methods: []string{jwt.SigningMethodRS256.Alg()},
		leeway:  30 * time.Second,
	}
}

func (v *Verifier) Verify(raw string) (Principal, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, v.keyFunc,
		jwt.WithValidMethods(v.methods),
		jwt.WithLeeway(v.leeway),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.TenantID == "" || claims.Subject == "" {
		return Principal{}, fmt.Errorf("%w: missing tenant or subject", ErrInvalidToken)
	}
	return Principal{UserID: claims.Subject, TenantID: claims.TenantID, Role: strings.ToUpper(claims.Role)}, nil
}

// SignHS256 issues a token. Used by local tooling and tests; production
// tokens come from the identity service.
func SignHS256(claims Claims, secret string) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
