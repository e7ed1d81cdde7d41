package security

import (
	"net/http"
	"strings"
	"time"

	"TaskFlow/tools/errs"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// AuthClaims is the identity the gateway extracts from a handshake
// token. Authorization policy stays with the issuing API; the gateway
// only needs to know who is on the wire.
type AuthClaims struct {
	UserID string
	Email  string
	Name   string
}

// Generate signs a handshake token (HS256). The API service is the
// normal issuer; this lives here so tests and tooling share the claim
// layout.
func Generate(secret []byte, claims AuthClaims, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	now := time.Now()
	mc := jwtlib.MapClaims{
		"sub": claims.UserID,
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	if claims.Email != "" {
		mc["email"] = claims.Email
	}
	if claims.Name != "" {
		mc["name"] = claims.Name
	}
	return jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, mc).SignedString(secret)
}

// TokenFromRequest reads a bearer token from the Authorization header
// or, for websocket handshakes where headers are awkward, the `token`
// query parameter.
func TokenFromRequest(r *http.Request) string {
	if authz := strings.TrimSpace(r.Header.Get("Authorization")); authz != "" {
		if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return strings.TrimSpace(authz[len("bearer "):])
		}
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

// ClaimsFromRequest verifies the handshake token (HMAC only) and pulls
// out the subject identity.
func ClaimsFromRequest(r *http.Request, secret []byte) (AuthClaims, error) {
	token := TokenFromRequest(r)
	if token == "" {
		return AuthClaims{}, errs.ErrAuthRequired.WrapMsg("no token")
	}

	parsed, err := jwtlib.Parse(token, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected alg: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return AuthClaims{}, errs.ErrAuthRequired.Wrap(err)
	}
	if !parsed.Valid {
		return AuthClaims{}, errs.ErrAuthRequired.WrapMsg("invalid token")
	}

	mc, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return AuthClaims{}, errs.ErrAuthRequired.WrapMsg("bad claims")
	}
	sub, _ := mc["sub"].(string)
	if sub == "" {
		return AuthClaims{}, errs.ErrAuthRequired.WrapMsg("no subject")
	}
	email, _ := mc["email"].(string)
	name, _ := mc["name"].(string)
	return AuthClaims{UserID: sub, Email: email, Name: name}, nil
}
