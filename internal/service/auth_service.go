package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/brightpath-labs/engage-sync-api/internal/models"
	appErrors "github.com/brightpath-labs/engage-sync-api/pkg/errors"
)

// AuthConfig defines credentials and token settings for the admin surface.
// There is a single operator identity, provisioned through configuration;
// the service holds no user table.
type AuthConfig struct {
	OperatorEmail        string
	OperatorPasswordHash string
	TokenSecret          string
	TokenExpiry          time.Duration
	Issuer               string
}

// AuthService authenticates the configured operator and issues access tokens.
type AuthService struct {
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.TokenExpiry <= 0 {
		config.TokenExpiry = time.Hour
	}
	return &AuthService{validator: validate, logger: logger, config: config}
}

// Login authenticates the operator and returns an issued token.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrValidation, "invalid login payload")
	}

	if !strings.EqualFold(req.Email, s.config.OperatorEmail) {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(s.config.OperatorPasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
	}

	token, expiresAt, err := s.generateAccessToken()
	if err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrInternal, "failed to create access token")
	}

	s.logger.Info("operator logged in", zap.String("email", s.config.OperatorEmail))

	return &models.LoginResponse{
		AccessToken: token,
		ExpiresIn:   int64(time.Until(expiresAt).Seconds()),
		IssuedAt:    time.Now().UTC(),
		Email:       s.config.OperatorEmail,
	}, nil
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.TokenSecret), nil
	})
	if err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrUnauthorized, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}

	return claims, nil
}

func (s *AuthService) generateAccessToken() (string, time.Time, error) {
	issuedAt := time.Now().UTC()
	expiresAt := issuedAt.Add(s.config.TokenExpiry)
	claims := &models.JWTClaims{
		Email: s.config.OperatorEmail,
		Role:  "operator",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   s.config.OperatorEmail,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.TokenSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}
