package services

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	pkgerrors "github.com/yungbote/galaxychat-backend/internal/pkg/errors"
	"github.com/yungbote/galaxychat-backend/internal/platform/ctxutil"
	"github.com/yungbote/galaxychat-backend/internal/platform/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func signHS(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestAuthServiceHS256(t *testing.T) {
	svc, err := NewAuthService(context.Background(), testLogger(t), AuthConfig{JWTSecret: "dev-secret", Issuer: "https://clerk.example.com"})
	if err != nil {
		t.Fatalf("NewAuthService: %v", err)
	}
	now := time.Now()
	tok := signHS(t, "dev-secret", jwt.MapClaims{
		"sub":   "user_123",
		"sid":   "sess_1",
		"email": "a@example.com",
		"iss":   "https://clerk.example.com",
		"exp":   now.Add(time.Hour).Unix(),
		"iat":   now.Unix(),
	})

	ctx, err := svc.SetContextFromToken(context.Background(), tok)
	if err != nil {
		t.Fatalf("SetContextFromToken: %v", err)
	}
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil || rd.UserID != "user_123" || rd.SessionID != "sess_1" || rd.Email != "a@example.com" {
		t.Fatalf("request data=%+v", rd)
	}
}

func TestAuthServiceRejectsBadTokens(t *testing.T) {
	svc, err := NewAuthService(context.Background(), testLogger(t), AuthConfig{JWTSecret: "dev-secret", Issuer: "https://clerk.example.com"})
	if err != nil {
		t.Fatalf("NewAuthService: %v", err)
	}
	exp := time.Now().Add(time.Hour).Unix()
	cases := map[string]string{
		"empty":        "",
		"wrong secret": signHS(t, "other", jwt.MapClaims{"sub": "u", "iss": "https://clerk.example.com", "exp": exp}),
		"expired":      signHS(t, "dev-secret", jwt.MapClaims{"sub": "u", "iss": "https://clerk.example.com", "exp": time.Now().Add(-time.Hour).Unix()}),
		"no exp":       signHS(t, "dev-secret", jwt.MapClaims{"sub": "u", "iss": "https://clerk.example.com"}),
		"wrong issuer": signHS(t, "dev-secret", jwt.MapClaims{"sub": "u", "iss": "https://evil.example.com", "exp": exp}),
		"missing sub":  signHS(t, "dev-secret", jwt.MapClaims{"iss": "https://clerk.example.com", "exp": exp}),
		"garbage":      "not.a.jwt",
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Verify(context.Background(), tok)
			if !errors.Is(err, pkgerrors.ErrUnauthorized) {
				t.Fatalf("want ErrUnauthorized, got %v", err)
			}
		})
	}
}

type jwksServer struct {
	*httptest.Server
	key     *rsa.PrivateKey
	fetches atomic.Int32
}

func newJWKSServer(t *testing.T) *jwksServer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa key: %v", err)
	}
	js := &jwksServer{key: key}
	js.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		js.fetches.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"keys": []map[string]string{{
			"kty": "RSA",
			"kid": "k1",
			"alg": "RS256",
			"use": "sig",
			"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		}}})
	}))
	t.Cleanup(js.Close)
	return js
}

func (js *jwksServer) sign(t *testing.T, kid string, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = kid
	s, err := tok.SignedString(js.key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestAuthServiceJWKS(t *testing.T) {
	js := newJWKSServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc, err := NewAuthService(ctx, testLogger(t), AuthConfig{JWKSURL: js.URL, Audience: "galaxychat"})
	if err != nil {
		t.Fatalf("NewAuthService: %v", err)
	}
	claims := jwt.MapClaims{"sub": "user_rs", "aud": "galaxychat", "exp": time.Now().Add(time.Hour).Unix()}

	for i := 0; i < 3; i++ {
		id, err := svc.Verify(ctx, js.sign(t, "k1", claims))
		if err != nil {
			t.Fatalf("Verify: %v", err)
		}
		if id.UserID != "user_rs" {
			t.Fatalf("user=%q", id.UserID)
		}
	}
	if got := js.fetches.Load(); got != 1 {
		t.Fatalf("jwks fetched %d times, want 1", got)
	}

	if _, err := svc.Verify(ctx, js.sign(t, "unknown", claims)); !errors.Is(err, pkgerrors.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized for unknown kid, got %v", err)
	}
	// HS256 is not accepted without a configured secret
	if _, err := svc.Verify(ctx, signHS(t, "x", claims)); !errors.Is(err, pkgerrors.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized for HS256, got %v", err)
	}
}

func TestAuthServiceLimitsUnknownKIDRefetches(t *testing.T) {
	js := newJWKSServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc, err := NewAuthService(ctx, testLogger(t), AuthConfig{JWKSURL: js.URL})
	if err != nil {
		t.Fatalf("NewAuthService: %v", err)
	}
	claims := jwt.MapClaims{"sub": "user_rs", "exp": time.Now().Add(time.Hour).Unix()}

	for i := 0; i < 20; i++ {
		tok := js.sign(t, fmt.Sprintf("forged-%d", i), claims)
		if _, err := svc.Verify(ctx, tok); !errors.Is(err, pkgerrors.ErrUnauthorized) {
			t.Fatalf("token %d: want ErrUnauthorized, got %v", i, err)
		}
	}
	// one fetch at startup plus at most one unknown-kid refresh
	if got := js.fetches.Load(); got > 2 {
		t.Fatalf("jwks fetched %d times for 20 unknown kids, want at most 2", got)
	}

	if _, err := svc.Verify(ctx, js.sign(t, "k1", claims)); err != nil {
		t.Fatalf("known kid after flood: %v", err)
	}
}

func TestNewAuthServiceRequiresKeySource(t *testing.T) {
	if _, err := NewAuthService(context.Background(), testLogger(t), AuthConfig{}); err == nil {
		t.Fatalf("expected error without JWKS URL or secret")
	}
}
