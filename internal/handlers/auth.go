package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"
	"github.com/victorgomez09/interceptor/internal/cerr"
	"github.com/victorgomez09/interceptor/internal/chain"
	"github.com/victorgomez09/interceptor/internal/config"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidToken is returned when a provided token is invalid or has expired.
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrInvalidCredentials is returned when a client provides incorrect credentials.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type claimsKey struct{}

// Claims returns the JWT claims stored by the jwt_auth handler, if any.
func Claims(ctx context.Context) (jwt.MapClaims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(jwt.MapClaims)
	return claims, ok
}

// BasicAuth checks username and password against bcrypt hashes.
// In proxy mode it reads Proxy-Authorization, answers 407 and strips the
// header before the request is forwarded.
type BasicAuth struct {
	chain.Passthrough
	realm string
	proxy bool
	users map[string][]byte
}

func NewBasicAuth(cfg config.BasicAuth) *BasicAuth {
	realm := cfg.Realm
	if realm == "" {
		realm = "interceptor"
	}
	users := make(map[string][]byte, len(cfg.Users))
	for name, hash := range cfg.Users {
		users[name] = []byte(hash)
	}
	return &BasicAuth{realm: realm, proxy: cfg.Proxy, users: users}
}

func (b *BasicAuth) Name() string {
	return "basic_auth"
}

func (b *BasicAuth) HandleRequest(_ context.Context, req *http.Request) (chain.Outcome, error) {
	header, challenge, status := "Authorization", "WWW-Authenticate", http.StatusUnauthorized
	if b.proxy {
		header, challenge, status = "Proxy-Authorization", "Proxy-Authenticate", http.StatusProxyAuthRequired
	}

	if err := b.verify(req.Header.Get(header)); err != nil {
		resp := chain.NewResponse(req, status, "text/plain; charset=utf-8", []byte(http.StatusText(status)+"\n"))
		resp.Header.Set(challenge, `Basic realm="`+b.realm+`"`)
		return chain.Respond(resp), nil
	}

	if b.proxy {
		req.Header.Del(header)
	}
	return chain.Pass(req), nil
}

func (b *BasicAuth) verify(value string) error {
	const prefix = "Basic "
	if len(value) < len(prefix) || !strings.EqualFold(value[:len(prefix)], prefix) {
		return ErrInvalidCredentials
	}
	decoded, err := base64.StdEncoding.DecodeString(value[len(prefix):])
	if err != nil {
		return ErrInvalidCredentials
	}
	username, password, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return ErrInvalidCredentials
	}
	hash, ok := b.users[username]
	if !ok {
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// JWTAuth verifies HMAC signed bearer tokens and stores the claims in the request context.
type JWTAuth struct {
	chain.Passthrough
	secret []byte
	header string
}

func NewJWTAuth(cfg config.JWTAuth) *JWTAuth {
	header := cfg.Header
	if header == "" {
		header = "Authorization"
	}
	return &JWTAuth{secret: []byte(cfg.Secret), header: header}
}

func (j *JWTAuth) Name() string {
	return "jwt_auth"
}

func (j *JWTAuth) HandleRequest(_ context.Context, req *http.Request) (chain.Outcome, error) {
	authHeader := req.Header.Get(j.header)
	if authHeader == "" {
		return chain.Respond(unauthorized(req, "No token provided")), nil
	}

	tokenParts := strings.Split(authHeader, " ")
	if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
		return chain.Respond(unauthorized(req, "Invalid authorization header")), nil
	}

	claims, err := j.validateToken(tokenParts[1])
	if err != nil {
		return chain.Respond(unauthorized(req, "Invalid token")), nil
	}

	ctx := context.WithValue(req.Context(), claimsKey{}, claims)
	return chain.Pass(req.WithContext(ctx)), nil
}

func (j *JWTAuth) validateToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return j.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func unauthorized(req *http.Request, message string) *http.Response {
	body, _ := json.Marshal(cerr.ErrorResponse{Status: "error", Message: message})
	resp := chain.NewResponse(req, http.StatusUnauthorized, "application/json", body)
	resp.Header.Set("WWW-Authenticate", "Bearer")
	return resp
}
