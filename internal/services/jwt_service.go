package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"todo-app/backend/internal/apperror"
	"todo-app/backend/internal/models"
)

// ErrInvalidToken はトークンが不正・改ざん・期限切れのいずれかであることを表します。
var ErrInvalidToken = errors.New("invalid or expired token")

// Claims はアクセストークンに埋め込むクレームです。
type Claims struct {
	UserID   int64  `json:"id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// JWTService はJWTトークンの生成と検証を扱います。
type JWTService struct {
	secret []byte
	ttl    time.Duration
}

// NewJWTService は新しいJWTServiceを作成します。secret は起動時に一度だけ決まります。
func NewJWTService(secret string, ttl time.Duration) *JWTService {
	return &JWTService{secret: []byte(secret), ttl: ttl}
}

// GenerateToken はユーザーIDとユーザー名を含む署名付きトークンを生成します。
func (s *JWTService) GenerateToken(u *models.User) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:   u.ID,
		Username: u.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT token: %w", err)
	}
	return tokenString, nil
}

// ValidateToken はトークンを検証し、埋め込まれた Identity を返します。
// 失敗時は常に Auth 種別の apperror.Error を返します。
func (s *JWTService) ValidateToken(tokenString string) (*models.Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, invalidToken(err)
	}
	if !token.Valid || claims.UserID == 0 {
		return nil, invalidToken(ErrInvalidToken)
	}
	return &models.Identity{ID: claims.UserID, Username: claims.Username}, nil
}

func invalidToken(cause error) error {
	e := apperror.Auth("Invalid or expired token")
	e.Err = cause
	return e
}
