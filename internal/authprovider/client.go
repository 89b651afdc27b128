// Package authprovider реализует узкий клиент внешнего провайдера
// аутентификации. Подсистеме премиум-доступа нужны две операции:
// чтение пользователя по email и смена роли. Остальная поверхность
// провайдера сюда сознательно не переносится.
package authprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/magabrotheeeer/entitlement-reconciler/internal/models"
)

// ErrUserNotFound возвращается, когда провайдер не знает такого пользователя.
var ErrUserNotFound = errors.New("user not found")

// Client клиент API провайдера аутентификации.
type Client struct {
	apiURL     string
	apiKey     string
	httpClient *http.Client
}

// NewClient создаёт новый клиент провайдера аутентификации.
func NewClient(apiURL, apiKey string) *Client {
	return &Client{
		apiURL:     apiURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type userResponse struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// GetUserByEmail возвращает пользователя провайдера по email.
func (c *Client) GetUserByEmail(ctx context.Context, email string) (*models.AuthUser, error) {
	const op = "authprovider.GetUserByEmail"

	reqURL := c.apiURL + "/users?email=" + url.QueryEscape(models.NormalizeEmail(email))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: unexpected status: %s", op, resp.Status)
	}

	var user userResponse
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &models.AuthUser{UID: user.UID, Email: models.NormalizeEmail(user.Email), Role: user.Role}, nil
}

// SetRole меняет роль пользователя у провайдера аутентификации.
func (c *Client) SetRole(ctx context.Context, uid, role string) error {
	const op = "authprovider.SetRole"

	body, err := json.Marshal(map[string]string{"role": role})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	reqURL := c.apiURL + "/users/" + url.PathEscape(uid) + "/role"
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, reqURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("%s: unexpected status: %s", op, resp.Status)
	}
	return nil
}
