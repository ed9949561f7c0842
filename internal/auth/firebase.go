package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const DefaultIdentityURL = "https://identitytoolkit.googleapis.com"

// Firebase checks credentials with the Identity Toolkit
// accounts:signInWithPassword endpoint.
type Firebase struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewFirebase(baseURL, apiKey string, timeout time.Duration) *Firebase {
	if baseURL == "" {
		baseURL = DefaultIdentityURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Firebase{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// firebaseCodes maps REST error messages to the SDK-style codes. Messages
// may carry a suffix such as "TOO_MANY_ATTEMPTS_TRY_LATER : ..." so only the
// leading token is matched.
var firebaseCodes = map[string]string{
	"INVALID_LOGIN_CREDENTIALS":   CodeInvalidCredential,
	"INVALID_EMAIL":               CodeInvalidCredential,
	"EMAIL_NOT_FOUND":             CodeUserNotFound,
	"INVALID_PASSWORD":            CodeWrongPassword,
	"TOO_MANY_ATTEMPTS_TRY_LATER": CodeTooManyRequests,
}

func (f *Firebase) SignIn(ctx context.Context, email, password string) (User, error) {
	payload, err := json.Marshal(map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	})
	if err != nil {
		return User{}, err
	}

	endpoint := f.baseURL + "/v1/accounts:signInWithPassword?key=" + f.apiKey
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return User{}, fmt.Errorf("build sign-in request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return User{}, fmt.Errorf("sign in: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var body struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		token := strings.TrimSpace(strings.SplitN(body.Error.Message, " ", 2)[0])
		code, ok := firebaseCodes[token]
		if !ok {
			code = "auth/" + strings.ToLower(strings.ReplaceAll(token, "_", "-"))
		}
		return User{}, &Error{Code: code, Err: fmt.Errorf("identity toolkit status %d: %s", resp.StatusCode, body.Error.Message)}
	}

	var res struct {
		LocalID string `json:"localId"`
		Email   string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return User{}, fmt.Errorf("decode sign-in response: %w", err)
	}
	return User{ID: res.LocalID, Email: res.Email}, nil
}
