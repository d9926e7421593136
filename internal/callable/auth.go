// Package callable turns an HTTP callable invocation into a CallableRequest,
// verifying the caller's bearer ID token.
package callable

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/outofoffice3/aws-samples/hermes/internal/fnerr"
	sharedtypes "github.com/outofoffice3/aws-samples/hermes/internal/shared/types"
)

const (
	// error msgs
	SecretNotSetErrMsg = "callable token secret not set"

	Issuer           = "hermes"
	UnauthenticMsg   = "Invalid ID token."
	BadRequestMsg    = "Request body must be a JSON object with a data field."
	DefaultTokenLife = time.Hour
)

var ErrInvalidToken = errors.New("invalid token")

// Claims are the ID token claims exposed to callable handlers.
type Claims struct {
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
	Email   string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Verifier checks HMAC signed ID tokens.
type Verifier struct {
	secret []byte
	now    func() time.Time
}

func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, errors.New(SecretNotSetErrMsg)
	}
	return &Verifier{secret: []byte(secret), now: time.Now}, nil
}

// Issue signs an ID token for uid. It is used by tooling and tests.
func (v *Verifier) Issue(uid string, c Claims, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultTokenLife
	}
	now := v.now()
	c.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   uid,
		Issuer:    Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(v.secret)
}

// Verify parses a token and returns the caller's auth context.
func (v *Verifier) Verify(token string) (*sharedtypes.AuthContext, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	}, jwt.WithIssuer(Issuer), jwt.WithTimeFunc(v.now))
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	tok := map[string]any{}
	if claims.Name != "" {
		tok["name"] = claims.Name
	}
	if claims.Picture != "" {
		tok["picture"] = claims.Picture
	}
	if claims.Email != "" {
		tok["email"] = claims.Email
	}
	return &sharedtypes.AuthContext{UID: claims.Subject, Token: tok}, nil
}

// bearer extracts the token from an Authorization header value.
func bearer(header string) string {
	const prefix = "bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

// header looks a header up case-insensitively.
func header(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// Bind builds the CallableRequest for an HTTP invocation. A request without
// an Authorization header is anonymous; a request with a bad token is
// rejected as UNAUTHENTICATED.
func Bind(v *Verifier, req sharedtypes.HTTPRequest) (sharedtypes.CallableRequest, error) {
	var out sharedtypes.CallableRequest
	body := strings.TrimSpace(req.Body)
	if body == "" {
		body = "{}"
	}
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		return out, fnerr.New(fnerr.InvalidArgument, BadRequestMsg)
	}
	out.Auth = nil
	token := bearer(header(req.Headers, "Authorization"))
	if token == "" {
		return out, nil
	}
	if v == nil {
		return out, fnerr.New(fnerr.Unauthenticated, UnauthenticMsg)
	}
	auth, err := v.Verify(token)
	if err != nil {
		return out, fnerr.New(fnerr.Unauthenticated, UnauthenticMsg)
	}
	out.Auth = auth
	return out, nil
}
