package authdir

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/studyloop/polarsync/internal/config"
	"github.com/studyloop/polarsync/internal/observability/tracing"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrUserNotFound = errors.New("auth_user_not_found")

// User is an account in the hosted auth system. Authoritative identity data
// lives there; this engine only reads it as a fallback email/id source.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Directory exposes the auth system's admin user listing.
type Directory interface {
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	GetUser(ctx context.Context, id string) (*User, error)
}

type httpDirectory struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// New builds a Directory against the auth admin API. When no admin URL is
// configured every lookup misses, which just shortens the fallback chain.
func New(cfg config.Config, log *zap.Logger) Directory {
	if strings.TrimSpace(cfg.AuthAdminURL) == "" {
		log.Named("authdir").Warn("auth admin api not configured, email fallback disabled")
		return disabledDirectory{}
	}
	return &httpDirectory{
		baseURL: strings.TrimRight(cfg.AuthAdminURL, "/"),
		apiKey:  cfg.AuthAdminKey,
		client:  tracing.WrapHTTPClient(&http.Client{Timeout: 10 * time.Second}),
	}
}

func (d *httpDirectory) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, ErrUserNotFound
	}

	endpoint := d.baseURL + "/admin/users?email=" + url.QueryEscape(email)
	var listing struct {
		Users []User `json:"users"`
	}
	if err := d.get(ctx, endpoint, &listing); err != nil {
		return nil, err
	}
	for i := range listing.Users {
		if strings.EqualFold(strings.TrimSpace(listing.Users[i].Email), email) {
			return &listing.Users[i], nil
		}
	}
	return nil, ErrUserNotFound
}

func (d *httpDirectory) GetUser(ctx context.Context, id string) (*User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrUserNotFound
	}

	var user User
	if err := d.get(ctx, d.baseURL+"/admin/users/"+url.PathEscape(id), &user); err != nil {
		return nil, err
	}
	if strings.TrimSpace(user.ID) == "" {
		return nil, ErrUserNotFound
	}
	return &user, nil
}

func (d *httpDirectory) get(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+d.apiKey)
	req.Header.Set("apikey", d.apiKey)

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return json.NewDecoder(resp.Body).Decode(out)
	case resp.StatusCode == http.StatusNotFound:
		return ErrUserNotFound
	default:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("auth admin api status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
}

type disabledDirectory struct{}

func (disabledDirectory) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	return nil, ErrUserNotFound
}

func (disabledDirectory) GetUser(ctx context.Context, id string) (*User, error) {
	return nil, ErrUserNotFound
}

var Module = fx.Module("authdir",
	fx.Provide(New),
)
