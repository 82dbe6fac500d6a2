package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const accessTokenTTL = 24 * time.Hour

// Service issues and validates access tokens for GPS collars and
// companion apps. Devices share one provisioning key, stored only as
// a bcrypt hash; each device identifies itself by a stable device_id.
type Service struct {
	secret        []byte
	deviceKeyHash []byte
}

type Claims struct {
	DeviceID string `json:"device_id"`
	jwt.RegisteredClaims
}

type TokenRequest struct {
	DeviceID  string `json:"device_id"`
	DeviceKey string `json:"device_key"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func NewService(secret, deviceKeyHash string) *Service {
	return &Service{
		secret:        []byte(secret),
		deviceKeyHash: []byte(deviceKeyHash),
	}
}

// HashDeviceKey produces the bcrypt hash stored in DEVICE_KEY_HASH.
func HashDeviceKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (s *Service) IssueToken(req TokenRequest) (TokenResponse, error) {
	if req.DeviceID == "" || req.DeviceKey == "" {
		return TokenResponse{}, errors.New("device_id and device_key required")
	}
	if len(s.deviceKeyHash) == 0 {
		return TokenResponse{}, errors.New("device key not configured")
	}
	if err := bcrypt.CompareHashAndPassword(s.deviceKeyHash, []byte(req.DeviceKey)); err != nil {
		return TokenResponse{}, errors.New("invalid device key")
	}

	access, err := s.signToken(req.DeviceID, accessTokenTTL)
	if err != nil {
		return TokenResponse{}, err
	}
	return TokenResponse{
		AccessToken: access,
		TokenType:   "Bearer",
		ExpiresIn:   int64(accessTokenTTL.Seconds()),
	}, nil
}

func (s *Service) ValidateAccessToken(token string) (string, error) {
	claims, err := s.parseToken(token)
	if err != nil {
		return "", err
	}
	return claims.DeviceID, nil
}

func (s *Service) signToken(deviceID string, ttl time.Duration) (string, error) {
	claims := Claims{
		DeviceID: deviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *Service) parseToken(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(_ *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("token invalid")
	}
	return claims, nil
}
