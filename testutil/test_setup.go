// Package testutil はHTTPレベルのテストで使う共通セットアップを提供します。
package testutil

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"todo-app/backend/internal/config"
	"todo-app/backend/internal/database"
	"todo-app/backend/internal/models"
	"todo-app/backend/internal/repositories"
	"todo-app/backend/internal/routes"
	"todo-app/backend/internal/services"
)

const (
	TestJWTSecret = "test-secret"

	NormalUsername = "normal_user"
	NormalEmail    = "normal_user@example.com"
	NormalPassword = "password123"

	OtherUsername = "other_user"
	OtherEmail    = "other_user@example.com"
	OtherPassword = "otherpass"
)

// TestConfig はテスト用の設定を返します。
func TestConfig() *config.Config {
	return &config.Config{
		DBDriver:           config.DriverSQLite,
		JWTSecret:          TestJWTSecret,
		JWTTTL:             time.Hour,
		BcryptCost:         bcrypt.MinCost,
		CORSAllowedOrigins: []string{"http://localhost:3000"},
	}
}

// OpenTestDB は一時ディレクトリに SQLite データベースを作成し、マイグレーションを適用します。
func OpenTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(database.SQLite, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err, "Failed to open test database")
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.Migrate(context.Background(), db, database.SQLite), "Failed to migrate test database")
	return db
}

// SetupTestDB はテスト用のデータベースとルーターを準備し、テストユーザーを投入します。
// opts はそのまま routes.SetupRouter に渡されます。
func SetupTestDB(t *testing.T, opts ...routes.Option) (*sql.DB, *gin.Engine, *repositories.TaskRepository, *repositories.UserRepository) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := OpenTestDB(t)
	userRepo := repositories.NewUserRepository(db)
	CreateTestUser(t, userRepo, NormalUsername, NormalEmail, NormalPassword)
	CreateTestUser(t, userRepo, OtherUsername, OtherEmail, OtherPassword)

	router := routes.SetupRouter(db, TestConfig(), opts...)
	return db, router, repositories.NewTaskRepository(db), userRepo
}

// CreateTestUser はユーザーをリポジトリ経由で直接作成します。
func CreateTestUser(t *testing.T, userRepo *repositories.UserRepository, username, email, password string) *models.User {
	t.Helper()
	hashedPassword, err := services.HashPassword(password, bcrypt.MinCost)
	require.NoError(t, err)

	created, err := userRepo.Create(context.Background(), &models.User{
		Username:             username,
		Email:                email,
		PasswordHash:         hashedPassword,
		BrowserNotifications: true,
	})
	require.NoError(t, err)
	require.NotZero(t, created.ID)
	return created
}

// DoJSON は JSON ボディ付きのリクエストを送り、レスポンスを返します。token が空なら認証ヘッダーを付けません。
func DoJSON(t *testing.T, router *gin.Engine, method, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Buffer
	switch p := payload.(type) {
	case nil:
		body = &bytes.Buffer{}
	case string:
		body = bytes.NewBufferString(p)
	default:
		b, err := json.Marshal(p)
		require.NoError(t, err)
		body = bytes.NewBuffer(b)
	}

	req, _ := http.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

// CreateTestTask はAPI経由でタスクを作成します。
func CreateTestTask(t *testing.T, router *gin.Engine, token string, payload map[string]any) *models.Task {
	t.Helper()
	resp := DoJSON(t, router, http.MethodPost, "/api/tasks", token, payload)
	require.Equal(t, http.StatusCreated, resp.Code, "タスク作成に失敗しました: %s", resp.Body.String())

	var created models.Task
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &created))
	return &created
}

// LoginAndGetToken はログインしてアクセストークンを返します。
func LoginAndGetToken(t *testing.T, router *gin.Engine, email, password string) (string, error) {
	t.Helper()
	resp := DoJSON(t, router, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    email,
		"password": password,
	})
	if resp.Code != http.StatusOK {
		return "", fmt.Errorf("login failed with status %d: %s", resp.Code, resp.Body.String())
	}

	var loginRes map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &loginRes); err != nil {
		return "", fmt.Errorf("failed to unmarshal login response: %w", err)
	}

	token, ok := loginRes["access_token"].(string)
	if !ok {
		return "", errors.New("access_token not found or not a string in login response")
	}
	return token, nil
}
