package models

// User はユーザーのデータベース構造体を表します。
type User struct {
	ID                   int64  `json:"id"`
	Username             string `json:"username"`
	Email                string `json:"email"`
	PasswordHash         string `json:"-"` // JSONに出さない
	BrowserNotifications bool   `json:"browser_notifications"`
}

// Profile は /api/me で返すユーザー情報です。パスワードハッシュは含みません。
type Profile struct {
	Username             string `json:"username"`
	Email                string `json:"email"`
	BrowserNotifications bool   `json:"browser_notifications"`
}

// Profile は User から公開用の Profile を作ります。
func (u *User) Profile() *Profile {
	return &Profile{
		Username:             u.Username,
		Email:                u.Email,
		BrowserNotifications: u.BrowserNotifications,
	}
}

// UserRegisterRequest はユーザー登録リクエストです。
// 検証はサービス層で validate タグに従って行います。
type UserRegisterRequest struct {
	Username string `json:"username" validate:"required,min=3"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"` // 生パスワード
}

type UserLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"` // 生パスワード
}

type UserForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ProfileUpdateRequest は PUT /api/me のリクエストです。
type ProfileUpdateRequest struct {
	BrowserNotifications *bool `json:"browser_notifications"`
}

// LoginResponse はログイン成功時のレスポンスです。
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Username    string `json:"username"`
	Email       string `json:"email"`
}

// Identity は検証済みトークンから得られる認証済みユーザーです。
type Identity struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// IdentityKey は gin.Context に Identity を格納するキーです。
const IdentityKey = "identity"
