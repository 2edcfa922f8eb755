package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"

	pkgerrors "github.com/yungbote/galaxychat-backend/internal/pkg/errors"
	"github.com/yungbote/galaxychat-backend/internal/platform/ctxutil"
	"github.com/yungbote/galaxychat-backend/internal/platform/logger"
)

// Identity is the caller as asserted by a verified session token.
type Identity struct {
	UserID    string
	SessionID string
	Email     string
	Name      string
	ImageURL  string
}

type AuthConfig struct {
	// JWKSURL enables RS256/ES256 session tokens signed by the identity provider.
	JWKSURL  string
	Issuer   string
	Audience string
	// JWTSecret enables HS256 tokens; intended for local development and tests.
	JWTSecret string
	Leeway    time.Duration
	// JWKSRefresh is the background refresh period of the key set.
	JWKSRefresh time.Duration
	// UnknownKIDInterval limits refetches triggered by tokens with an unseen kid.
	UnknownKIDInterval time.Duration
}

type AuthService interface {
	Verify(ctx context.Context, token string) (*Identity, error)
	// SetContextFromToken verifies token and attaches the identity as request data.
	SetContextFromToken(ctx context.Context, token string) (context.Context, error)
}

type authService struct {
	log      *logger.Logger
	cfg      AuthConfig
	jwks     keyfunc.Keyfunc
	parseAsy *jwt.Parser
	parseSym *jwt.Parser
}

// NewAuthService builds the verifier. When a JWKS URL is configured the key set is
// refreshed in the background until ctx is done.
func NewAuthService(ctx context.Context, log *logger.Logger, cfg AuthConfig) (AuthService, error) {
	if strings.TrimSpace(cfg.JWKSURL) == "" && strings.TrimSpace(cfg.JWTSecret) == "" {
		return nil, fmt.Errorf("AUTH_JWKS_URL or AUTH_JWT_SECRET is required")
	}
	if cfg.Leeway <= 0 {
		cfg.Leeway = 30 * time.Second
	}
	serviceLog := log.With("service", "AuthService")

	opts := []jwt.ParserOption{jwt.WithLeeway(cfg.Leeway), jwt.WithExpirationRequired()}
	if iss := strings.TrimSpace(cfg.Issuer); iss != "" {
		opts = append(opts, jwt.WithIssuer(iss))
	}
	if aud := strings.TrimSpace(cfg.Audience); aud != "" {
		opts = append(opts, jwt.WithAudience(aud))
	}

	s := &authService{
		log:      serviceLog,
		cfg:      cfg,
		parseAsy: jwt.NewParser(append([]jwt.ParserOption{jwt.WithValidMethods([]string{"RS256", "ES256"})}, opts...)...),
		parseSym: jwt.NewParser(append([]jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}, opts...)...),
	}
	if u := strings.TrimSpace(cfg.JWKSURL); u != "" {
		kf, err := newJWKS(ctx, serviceLog, u, cfg)
		if err != nil {
			return nil, fmt.Errorf("init jwks: %w", err)
		}
		s.jwks = kf
	}
	return s, nil
}

func newJWKS(ctx context.Context, log *logger.Logger, url string, cfg AuthConfig) (keyfunc.Keyfunc, error) {
	refresh := cfg.JWKSRefresh
	if refresh <= 0 {
		refresh = time.Hour
	}
	unknownKID := cfg.UnknownKIDInterval
	if unknownKID <= 0 {
		unknownKID = 5 * time.Minute
	}

	remote, err := jwkset.NewStorageFromHTTP(url, jwkset.HTTPClientStorageOptions{
		Client:                    http.DefaultClient,
		Ctx:                       ctx,
		HTTPExpectedStatus:        http.StatusOK,
		HTTPMethod:                http.MethodGet,
		HTTPTimeout:               10 * time.Second,
		NoErrorReturnFirstHTTPReq: true,
		RefreshErrorHandler: func(_ context.Context, err error) {
			log.Warn("JWKS refresh failed", "url", url, "error", err)
		},
		RefreshInterval: refresh,
	})
	if err != nil {
		return nil, err
	}
	client, err := jwkset.NewHTTPClient(jwkset.HTTPClientOptions{
		HTTPURLs:          map[string]jwkset.Storage{url: remote},
		RateLimitWaitMax:  time.Second,
		RefreshUnknownKID: rate.NewLimiter(rate.Every(unknownKID), 1),
	})
	if err != nil {
		return nil, err
	}
	return keyfunc.New(keyfunc.Options{Ctx: ctx, Storage: client})
}

// sessionClaims covers the claims the identity provider puts in session tokens.
type sessionClaims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid,omitempty"`
	Email     string `json:"email,omitempty"`
	Name      string `json:"name,omitempty"`
	ImageURL  string `json:"image_url,omitempty"`
	Picture   string `json:"picture,omitempty"`
}

func (s *authService) Verify(ctx context.Context, token string) (*Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("missing session token: %w", pkgerrors.ErrUnauthorized)
	}

	claims := &sessionClaims{}
	var err error
	switch alg := tokenAlg(token); {
	case alg == "HS256" && s.cfg.JWTSecret != "":
		_, err = s.parseSym.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
			return []byte(s.cfg.JWTSecret), nil
		})
	case s.jwks != nil:
		_, err = s.parseAsy.ParseWithClaims(token, claims, s.jwks.KeyfuncCtx(ctx))
	default:
		err = fmt.Errorf("unsupported signing method %q", alg)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid session token: %v: %w", err, pkgerrors.ErrUnauthorized)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, fmt.Errorf("session token missing sub: %w", pkgerrors.ErrUnauthorized)
	}

	image := claims.ImageURL
	if image == "" {
		image = claims.Picture
	}
	return &Identity{
		UserID:    claims.Subject,
		SessionID: claims.SessionID,
		Email:     claims.Email,
		Name:      claims.Name,
		ImageURL:  image,
	}, nil
}

func (s *authService) SetContextFromToken(ctx context.Context, token string) (context.Context, error) {
	id, err := s.Verify(ctx, token)
	if err != nil {
		return ctx, err
	}
	return ctxutil.WithRequestData(ctx, &ctxutil.RequestData{
		TokenString: token,
		UserID:      id.UserID,
		SessionID:   id.SessionID,
		Email:       id.Email,
		Name:        id.Name,
		ImageURL:    id.ImageURL,
	}), nil
}

func tokenAlg(token string) string {
	tok, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil || tok == nil {
		return ""
	}
	alg, _ := tok.Header["alg"].(string)
	return alg
}
