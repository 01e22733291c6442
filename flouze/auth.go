package flouze

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"

	"github.com/flouzetrack/flouze-cli/apiclient"
	"github.com/flouzetrack/flouze-cli/tokenstore"
)

// Credentials are the sign-in and sign-up form values.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserProfile is returned by /auth/me.
type UserProfile struct {
	Email string `json:"email"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// SignIn authenticates and stores both tokens. A wrong email or password
// yields an error matching apiclient.ErrInvalidCredentials.
func (a *API) SignIn(ctx context.Context, creds Credentials) (*oauth2.Token, error) {
	req := apiclient.NewRequest(http.MethodPost, apiclient.SignInPath).On(apiclient.ServiceAuth)
	req, err := req.WithJSON(creds)
	if err != nil {
		return nil, err
	}

	resp, err := a.c.Send(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}

	tok, err := parseToken(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	if tok.RefreshToken == "" {
		return nil, errors.New("sign in: response has no refreshToken")
	}

	if err := a.c.Store().SetTokens(tok.AccessToken, tok.RefreshToken); err != nil {
		return nil, fmt.Errorf("storing session: %w", err)
	}
	return tok, nil
}

// SignUp creates an account. When the server returns a token it is stored;
// the account still needs its email verified.
func (a *API) SignUp(ctx context.Context, creds Credentials) error {
	req := apiclient.NewRequest(http.MethodPost, apiclient.SignUpPath).On(apiclient.ServiceAuth)
	req, err := req.WithJSON(creds)
	if err != nil {
		return err
	}

	resp, err := a.c.Send(ctx, req)
	if err != nil {
		return fmt.Errorf("sign up: %w", err)
	}

	if token := gjson.GetBytes(resp.Body, "token").String(); token != "" {
		if err := a.c.Store().SetAccessToken(token); err != nil {
			return fmt.Errorf("storing session: %w", err)
		}
	}
	return nil
}

// VerifyEmail confirms an account with the token from the verification
// link. The link token acts as the bearer for this one call.
func (a *API) VerifyEmail(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", errors.New("invalid verification link")
	}
	if err := a.c.Store().SetAccessToken(token); err != nil {
		return "", fmt.Errorf("storing verification token: %w", err)
	}

	var out messageResponse
	req := apiclient.NewRequest(http.MethodPost, "/auth/verify-email").On(apiclient.ServiceAuth)
	if err := a.c.Do(ctx, req, &out); err != nil {
		return "", fmt.Errorf("verify email: %w", err)
	}
	return out.Message, nil
}

// ForgotPassword asks the server to email a reset link.
func (a *API) ForgotPassword(ctx context.Context, email string) (string, error) {
	var out messageResponse
	req := apiclient.NewRequest(http.MethodPost, "/auth/forgot-password")
	if err := a.send(ctx, req, map[string]string{"email": email}, &out); err != nil {
		return "", fmt.Errorf("forgot password: %w", err)
	}
	return out.Message, nil
}

// ResetPassword sets a new password using the token from the reset link.
func (a *API) ResetPassword(ctx context.Context, token, password string) error {
	if token == "" {
		return errors.New("missing reset token")
	}
	if err := a.c.Store().SetAccessToken(token); err != nil {
		return fmt.Errorf("storing reset token: %w", err)
	}

	req := apiclient.NewRequest(http.MethodPost, "/auth/reset-password")
	body := map[string]string{"password": password, "token": token}
	if err := a.send(ctx, req, body, nil); err != nil {
		return fmt.Errorf("reset password: %w", err)
	}
	return nil
}

// Me returns the signed-in user's profile.
func (a *API) Me(ctx context.Context) (*UserProfile, error) {
	var p UserProfile
	req := apiclient.NewRequest(http.MethodGet, "/auth/me").On(apiclient.ServiceAuth)
	if err := a.c.Do(ctx, req, &p); err != nil {
		return nil, fmt.Errorf("fetching profile: %w", err)
	}
	return &p, nil
}

// Logout forgets the session locally.
func (a *API) Logout() error {
	return a.c.Store().RemoveAll()
}

// SignedIn reports whether an access token is held.
func (a *API) SignedIn() (bool, error) {
	tok, err := a.c.Store().AccessToken()
	return tok != "", err
}

// parseToken reads accessToken/refreshToken from an auth response. Expiry
// is taken from the access token when it is a JWT.
func parseToken(body []byte) (*oauth2.Token, error) {
	res := gjson.ParseBytes(body)
	access := res.Get("accessToken").String()
	if access == "" {
		return nil, errors.New("response has no accessToken")
	}

	tok := &oauth2.Token{
		AccessToken:  access,
		RefreshToken: res.Get("refreshToken").String(),
		TokenType:    "Bearer",
	}
	if exp, err := tokenstore.Expiry(access); err == nil {
		tok.Expiry = exp
	}
	return tok, nil
}
