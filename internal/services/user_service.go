package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"todo-app/backend/internal/apperror"
	"todo-app/backend/internal/models"
	"todo-app/backend/internal/repositories"
)

// ForgotPasswordMessage は登録の有無に関わらず返す汎用メッセージです。
const ForgotPasswordMessage = "If that email is registered, a password reset link has been sent"

const (
	msgIncorrectCredentials = "Incorrect email or password"
	msgUserExists           = "Username or email already exists"
	msgUserNotFound         = "User not found"
	msgPasswordTooLong      = "Password must be at most 72 bytes"
)

// bcrypt が受け付けるパスワードの最大バイト数
const maxPasswordBytes = 72

// 登録時の検証ルールごとのメッセージ
var registerMessages = map[string]string{
	"Username": "Username must be at least 3 characters long",
	"Email":    "Please provide a valid email address",
	"Password": "Password must be at least 6 characters long",
}

// UserService はユーザー関連のビジネスロジックを扱います。
type UserService struct {
	userRepo   *repositories.UserRepository
	jwtService *JWTService
	validate   *validator.Validate
	bcryptCost int
	// 存在しないメールアドレスでも照合コストを揃えるためのハッシュ
	dummyHash []byte
}

// NewUserService は新しいUserServiceを作成します。
func NewUserService(userRepo *repositories.UserRepository, jwtService *JWTService, bcryptCost int) *UserService {
	dummy, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcryptCost)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to prepare dummy password hash")
	}
	return &UserService{
		userRepo:   userRepo,
		jwtService: jwtService,
		validate:   validator.New(),
		bcryptCost: bcryptCost,
		dummyHash:  dummy,
	}
}

// HashPassword は与えられたパスワードをbcryptでハッシュ化します。
func HashPassword(password string, cost int) (string, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedPassword), nil
}

// VerifyPassword はハッシュ化されたパスワードと平文のパスワードを比較します。
func VerifyPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// RegisterUser はユーザーを登録します。検証エラーはすべてまとめて返します。
func (s *UserService) RegisterUser(ctx context.Context, req models.UserRegisterRequest) (*models.User, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)

	if violations := s.validateRegister(req); len(violations) > 0 {
		return nil, apperror.Validation("Validation failed", violations...)
	}

	exists, err := s.userRepo.ExistsByUsernameOrEmail(ctx, req.Username, req.Email)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if exists {
		return nil, apperror.Conflict(msgUserExists)
	}

	hashedPassword, err := HashPassword(req.Password, s.bcryptCost)
	if err != nil {
		return nil, apperror.Internal(err)
	}

	newUser := &models.User{
		Username:             req.Username,
		Email:                req.Email,
		PasswordHash:         hashedPassword,
		BrowserNotifications: true,
	}
	createdUser, err := s.userRepo.Create(ctx, newUser)
	if err != nil {
		// 事前確認と INSERT の間に同じ値が登録された場合
		if errors.Is(err, repositories.ErrDuplicateUser) {
			return nil, apperror.Conflict(msgUserExists)
		}
		return nil, apperror.Internal(err)
	}
	createdUser.PasswordHash = "" // レスポンスにパスワードを含めない
	log.Info().Int64("user_id", createdUser.ID).Str("username", createdUser.Username).Msg("Registered user")
	return createdUser, nil
}

func (s *UserService) validateRegister(req models.UserRegisterRequest) []string {
	var violations []string
	seen := make(map[string]bool)
	if err := s.validate.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return []string{err.Error()}
		}
		for _, fe := range fieldErrs {
			if seen[fe.Field()] {
				continue
			}
			seen[fe.Field()] = true
			violations = append(violations, registerMessages[fe.Field()])
		}
	}
	// bcrypt は 72 バイトを超える入力を拒否する
	if !seen["Password"] && len(req.Password) > maxPasswordBytes {
		violations = append(violations, msgPasswordTooLong)
	}
	return violations
}

// Login はユーザーを認証し、アクセストークンを発行します。
// メールアドレスが未登録の場合とパスワードが違う場合は同じエラーを返します。
func (s *UserService) Login(ctx context.Context, req models.UserLoginRequest) (*models.LoginResponse, error) {
	foundUser, err := s.userRepo.FindByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(req.Password))
			return nil, apperror.Auth(msgIncorrectCredentials)
		}
		return nil, apperror.Internal(err)
	}

	if err := VerifyPassword(foundUser.PasswordHash, req.Password); err != nil {
		return nil, apperror.Auth(msgIncorrectCredentials)
	}

	token, err := s.jwtService.GenerateToken(foundUser)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return &models.LoginResponse{
		AccessToken: token,
		TokenType:   "bearer",
		Username:    foundUser.Username,
		Email:       foundUser.Email,
	}, nil
}

// ForgotPassword は常に同じメッセージを返します。メールは送信しません。
func (s *UserService) ForgotPassword(ctx context.Context, email string) string {
	if _, err := s.userRepo.FindByEmail(ctx, strings.TrimSpace(email)); err != nil && !errors.Is(err, repositories.ErrUserNotFound) {
		log.Error().Err(err).Msg("Failed to look up user for password reset")
	}
	return ForgotPasswordMessage
}

// GetProfile はユーザーのプロフィールを返します。
func (s *UserService) GetProfile(ctx context.Context, userID int64) (*models.Profile, error) {
	u, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, apperror.NotFound(msgUserNotFound)
		}
		return nil, apperror.Internal(err)
	}
	return u.Profile(), nil
}

// UpdateProfile は通知設定を更新し、更新後のプロフィールを返します。
func (s *UserService) UpdateProfile(ctx context.Context, userID int64, req models.ProfileUpdateRequest) (*models.Profile, error) {
	if req.BrowserNotifications == nil {
		return nil, apperror.Validation("Validation failed", "browser_notifications must be a boolean")
	}
	if _, err := s.GetProfile(ctx, userID); err != nil {
		return nil, err
	}
	if err := s.userRepo.UpdateNotifications(ctx, userID, *req.BrowserNotifications); err != nil {
		return nil, apperror.Internal(err)
	}
	return s.GetProfile(ctx, userID)
}

// DeleteAccount はユーザーと所有タスクをまとめて削除します。
func (s *UserService) DeleteAccount(ctx context.Context, userID int64) error {
	if err := s.userRepo.DeleteWithTasks(ctx, userID); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return apperror.NotFound(msgUserNotFound)
		}
		return apperror.Internal(err)
	}
	return nil
}
