package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todo-app/backend/internal/models"
	"todo-app/backend/internal/services"
	"todo-app/backend/testutil"
)

type errorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details"`
}

func decodeError(t *testing.T, body []byte) errorResponse {
	t.Helper()
	var res errorResponse
	require.NoError(t, json.Unmarshal(body, &res), "Response should be a valid JSON error object")
	return res
}

func TestRegisterUser_Success(t *testing.T) {
	_, r, _, _ := testutil.SetupTestDB(t)

	w := testutil.DoJSON(t, r, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "newuser",
		"email":    "newuser@example.com",
		"password": "newpassword",
	})
	require.Equal(t, http.StatusCreated, w.Code, "Expected HTTP Status Code 201 Created: %s", w.Body.String())

	var res struct {
		Message string         `json:"message"`
		User    map[string]any `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "User registered successfully", res.Message)
	assert.NotZero(t, res.User["id"], "Expected a non-zero User ID")
	assert.Equal(t, "newuser", res.User["username"])
	assert.Equal(t, "newuser@example.com", res.User["email"])
	assert.Equal(t, true, res.User["browser_notifications"], "Notifications should default to enabled")
	assert.NotContains(t, res.User, "password", "Password hash should not be returned in response")
	assert.NotContains(t, w.Body.String(), "$2a$", "No bcrypt hash should leak")
}

func TestRegisterUser_ReportsAllViolations(t *testing.T) {
	_, r, _, _ := testutil.SetupTestDB(t)

	w := testutil.DoJSON(t, r, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "ab",
		"email":    "not-an-email",
		"password": "123",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	res := decodeError(t, w.Body.Bytes())
	assert.Equal(t, "Validation failed", res.Error)
	assert.ElementsMatch(t, []string{
		"Username must be at least 3 characters long",
		"Please provide a valid email address",
		"Password must be at least 6 characters long",
	}, res.Details)
}

func TestRegisterUser_MissingPassword(t *testing.T) {
	_, r, _, _ := testutil.SetupTestDB(t)

	w := testutil.DoJSON(t, r, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "invaliduser",
		"email":    "invalid@example.com",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	res := decodeError(t, w.Body.Bytes())
	assert.Equal(t, []string{"Password must be at least 6 characters long"}, res.Details)
}

func TestRegisterUser_PasswordTooLong(t *testing.T) {
	_, r, _, _ := testutil.SetupTestDB(t)

	for name, password := range map[string]string{
		"ascii":     strings.Repeat("a", 80),
		"multibyte": strings.Repeat("あ", 25), // 25 文字だが 75 バイト
	} {
		t.Run(name, func(t *testing.T) {
			w := testutil.DoJSON(t, r, http.MethodPost, "/api/auth/register", "", map[string]string{
				"username": "longpass",
				"email":    "longpass@example.com",
				"password": password,
			})
			require.Equal(t, http.StatusBadRequest, w.Code)

			res := decodeError(t, w.Body.Bytes())
			assert.Equal(t, "Validation failed", res.Error)
			assert.Equal(t, []string{"Password must be at most 72 bytes"}, res.Details)
		})
	}

	// 72 バイトちょうどは受け付ける
	w := testutil.DoJSON(t, r, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "longpass",
		"email":    "longpass@example.com",
		"password": strings.Repeat("a", 72),
	})
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestRegisterUser_Duplicate(t *testing.T) {
	_, r, _, _ := testutil.SetupTestDB(t)

	tests := []struct {
		name    string
		payload map[string]string
	}{
		{"duplicate email", map[string]string{"username": "brand_new", "email": testutil.NormalEmail, "password": "password123"}},
		{"duplicate username", map[string]string{"username": testutil.NormalUsername, "email": "brand_new@example.com", "password": "password123"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := testutil.DoJSON(t, r, http.MethodPost, "/api/auth/register", "", tt.payload)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "Username or email already exists", decodeError(t, w.Body.Bytes()).Error)
		})
	}
}

func TestRegisterUser_MalformedJSON(t *testing.T) {
	_, r, _, _ := testutil.SetupTestDB(t)

	w := testutil.DoJSON(t, r, http.MethodPost, "/api/auth/register", "", `{"username": "x",`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid request payload", decodeError(t, w.Body.Bytes()).Error)
}

func TestLoginUser_Success(t *testing.T) {
	_, r, _, userRepo := testutil.SetupTestDB(t)

	w := testutil.DoJSON(t, r, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    testutil.NormalEmail,
		"password": testutil.NormalPassword,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res models.LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.NotEmpty(t, res.AccessToken)
	assert.Equal(t, "bearer", res.TokenType)
	assert.Equal(t, testutil.NormalUsername, res.Username)
	assert.Equal(t, testutil.NormalEmail, res.Email)

	stored, err := userRepo.FindByEmail(context.Background(), testutil.NormalEmail)
	require.NoError(t, err)

	identity, err := services.NewJWTService(testutil.TestJWTSecret, time.Hour).ValidateToken(res.AccessToken)
	require.NoError(t, err, "Issued token should verify with the server secret")
	assert.Equal(t, stored.ID, identity.ID)
	assert.Equal(t, testutil.NormalUsername, identity.Username)
}

func TestLoginUser_FailuresAreIndistinguishable(t *testing.T) {
	_, r, _, _ := testutil.SetupTestDB(t)

	wrongPassword := testutil.DoJSON(t, r, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    testutil.NormalEmail,
		"password": "wrongpassword",
	})
	unknownEmail := testutil.DoJSON(t, r, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "nobody@example.com",
		"password": "wrongpassword",
	})

	assert.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	assert.Equal(t, wrongPassword.Code, unknownEmail.Code)
	assert.JSONEq(t, wrongPassword.Body.String(), unknownEmail.Body.String())
	assert.Equal(t, "Incorrect email or password", decodeError(t, wrongPassword.Body.Bytes()).Error)
}

func TestForgotPassword_SameResponseForAnyEmail(t *testing.T) {
	_, r, _, _ := testutil.SetupTestDB(t)

	registered := testutil.DoJSON(t, r, http.MethodPost, "/api/auth/forgot-password", "", map[string]string{"email": testutil.NormalEmail})
	unknown := testutil.DoJSON(t, r, http.MethodPost, "/api/auth/forgot-password", "", map[string]string{"email": "nobody@example.com"})

	require.Equal(t, http.StatusOK, registered.Code)
	assert.Equal(t, registered.Code, unknown.Code)
	assert.JSONEq(t, registered.Body.String(), unknown.Body.String())
	assert.Contains(t, registered.Body.String(), services.ForgotPasswordMessage)
}

func TestGetMe(t *testing.T) {
	_, r, _, _ := testutil.SetupTestDB(t)
	token, err := testutil.LoginAndGetToken(t, r, testutil.NormalEmail, testutil.NormalPassword)
	require.NoError(t, err)

	w := testutil.DoJSON(t, r, http.MethodGet, "/api/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"username":"normal_user","email":"normal_user@example.com","browser_notifications":true}`, w.Body.String())
}

func TestUpdateMe(t *testing.T) {
	_, r, _, _ := testutil.SetupTestDB(t)
	token, err := testutil.LoginAndGetToken(t, r, testutil.NormalEmail, testutil.NormalPassword)
	require.NoError(t, err)

	w := testutil.DoJSON(t, r, http.MethodPut, "/api/me", token, map[string]bool{"browser_notifications": false})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var profile models.Profile
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &profile))
	assert.False(t, profile.BrowserNotifications)

	w = testutil.DoJSON(t, r, http.MethodGet, "/api/me", token, nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &profile))
	assert.False(t, profile.BrowserNotifications, "Preference should be persisted")

	w = testutil.DoJSON(t, r, http.MethodPut, "/api/me", token, map[string]bool{"browser_notifications": true})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &profile))
	assert.True(t, profile.BrowserNotifications)
}

func TestUpdateMe_MissingPreference(t *testing.T) {
	_, r, _, _ := testutil.SetupTestDB(t)
	token, err := testutil.LoginAndGetToken(t, r, testutil.NormalEmail, testutil.NormalPassword)
	require.NoError(t, err)

	w := testutil.DoJSON(t, r, http.MethodPut, "/api/me", token, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = testutil.DoJSON(t, r, http.MethodPut, "/api/me", token, map[string]string{"browser_notifications": "yes"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "Non-boolean preference should be rejected")
}

func TestDeleteAccount_RemovesUserAndTasks(t *testing.T) {
	db, r, _, _ := testutil.SetupTestDB(t)
	token, err := testutil.LoginAndGetToken(t, r, testutil.NormalEmail, testutil.NormalPassword)
	require.NoError(t, err)
	otherToken, err := testutil.LoginAndGetToken(t, r, testutil.OtherEmail, testutil.OtherPassword)
	require.NoError(t, err)

	testutil.CreateTestTask(t, r, token, map[string]any{"title": "mine 1"})
	testutil.CreateTestTask(t, r, token, map[string]any{"title": "mine 2"})
	otherTask := testutil.CreateTestTask(t, r, otherToken, map[string]any{"title": "theirs"})

	w := testutil.DoJSON(t, r, http.MethodDelete, "/api/me/delete-account", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"message":"Account deleted successfully"}`, w.Body.String())

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM users WHERE email = ?", testutil.NormalEmail).Scan(&count))
	assert.Zero(t, count, "User row should be deleted")
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM tasks WHERE user_id <> ?", otherTask.UserID).Scan(&count))
	assert.Zero(t, count, "Owned tasks should be deleted")
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM tasks WHERE id = ?", otherTask.ID).Scan(&count))
	assert.Equal(t, 1, count, "Other users' tasks must survive")

	_, err = testutil.LoginAndGetToken(t, r, testutil.NormalEmail, testutil.NormalPassword)
	assert.Error(t, err, "Deleted user should not be able to log in")

	// トークン自体はまだ有効だが、ユーザーは存在しない
	w = testutil.DoJSON(t, r, http.MethodGet, "/api/me", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = testutil.DoJSON(t, r, http.MethodDelete, "/api/me/delete-account", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProtectedRoutes_RequireToken(t *testing.T) {
	_, r, _, _ := testutil.SetupTestDB(t)

	routes := []struct{ method, path string }{
		{http.MethodGet, "/api/tasks"},
		{http.MethodGet, "/api/tasks/due-soon"},
		{http.MethodPost, "/api/tasks"},
		{http.MethodPut, "/api/tasks/1"},
		{http.MethodDelete, "/api/tasks/1"},
		{http.MethodGet, "/api/me"},
		{http.MethodPut, "/api/me"},
		{http.MethodDelete, "/api/me/delete-account"},
	}
	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			w := testutil.DoJSON(t, r, rt.method, rt.path, "", nil)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, "No token provided", decodeError(t, w.Body.Bytes()).Error)
		})
	}
}
