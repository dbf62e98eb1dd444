// Package auth implements the token service and API-key validator.
//
// Both run off the immutable credential configuration loaded at startup.
// Tokens are HMAC-signed JWTs verified statelessly: nothing is persisted
// server-side.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tickerwell/fincollect/internal/common"
	"github.com/tickerwell/fincollect/internal/models"
)

var (
	// ErrInvalidCredentials is returned when a client_id/client_secret pair
	// does not match the configured credentials.
	ErrInvalidCredentials = errors.New("invalid client credentials")

	// ErrInvalidToken is returned for any token failure: malformed, wrong
	// signature, or expired. Callers get no further distinction.
	ErrInvalidToken = errors.New("could not validate credentials")

	// ErrInvalidAPIKey is returned when the presented API key is absent or
	// does not exactly match the configured key.
	ErrInvalidAPIKey = errors.New("invalid API key")
)

// Service issues and verifies bearer tokens and validates API keys.
type Service struct {
	config *common.AuthConfig
	logger *common.Logger
}

// NewService creates an auth service bound to the given credential config.
func NewService(config *common.AuthConfig, logger *common.Logger) *Service {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Service{config: config, logger: logger}
}

// signingMethod resolves the configured JWT algorithm, restricted to HMAC.
func (s *Service) signingMethod() (jwt.SigningMethod, error) {
	method := jwt.GetSigningMethod(s.config.JWTAlgorithm)
	if method == nil {
		return nil, fmt.Errorf("unknown JWT algorithm: %s", s.config.JWTAlgorithm)
	}
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unsupported JWT algorithm: %s", s.config.JWTAlgorithm)
	}
	return method, nil
}

// IssueToken validates the client credential pair by exact string equality
// and, on success, returns a signed token with subject=client_id and an
// absolute expiry of issuance time plus the configured minutes. A zero-minute
// expiry is legal and yields a token that is already expired.
func (s *Service) IssueToken(clientID, clientSecret string) (*models.Token, error) {
	if clientID != s.config.ClientID || clientSecret != s.config.ClientSecret {
		return nil, ErrInvalidCredentials
	}

	method, err := s.signingMethod()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub": clientID,
		"iat": now.Unix(),
		"exp": now.Add(s.config.GetTokenExpiry()).Unix(),
	}

	signed, err := jwt.NewWithClaims(method, claims).SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	s.logger.Debug().Str("client_id", clientID).Msg("Issued access token")

	return &models.Token{AccessToken: signed, TokenType: "bearer"}, nil
}

// VerifyToken decodes a token string and checks signature and expiry using
// the configured secret. Every failure mode collapses to ErrInvalidToken.
func (s *Service) VerifyToken(tokenString string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ValidateAPIKey compares a request-supplied key against the configured
// static key. Exact match only: no trimming, no case folding.
func (s *Service) ValidateAPIKey(presented string) error {
	if presented == "" || presented != s.config.APIKey {
		return ErrInvalidAPIKey
	}
	return nil
}
