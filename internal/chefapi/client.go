// Package chefapi is a minimal signed client for the coordination service.
package chefapi

import (
	"context"
	"crypto"
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-chef/chef"

	"github.com/John-Robertt/chefboot-go/internal/credential"
	"github.com/John-Robertt/chefboot-go/internal/endpoint"
	"github.com/John-Robertt/chefboot-go/internal/model"
)

// DefaultTimeout bounds every API call.
const DefaultTimeout = 30 * time.Second

// authVersion is the signing protocol the service verifies.
const authVersion = "1.0"

type Error struct {
	Status   int
	AppError model.AppError
	Cause    error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// Client signs every request with the client key. The endpoint may change
// between calls; one API client is kept per base URL.
type Client struct {
	endpoint endpoint.Source
	userID   string
	keyPEM   string

	mu   sync.Mutex
	base string
	api  *chef.Client
}

// New requires an RSA key; the service only verifies RSA signatures.
func New(ep endpoint.Source, userID string, key crypto.PrivateKey) (*Client, error) {
	if _, ok := key.(*rsa.PrivateKey); !ok {
		return nil, fmt.Errorf("chefapi: client key must be RSA, got %T", key)
	}
	if strings.TrimSpace(userID) == "" {
		return nil, errors.New("chefapi: client name must not be empty")
	}
	keyPEM, err := credential.PEM(key)
	if err != nil {
		return nil, fmt.Errorf("chefapi: %w", err)
	}
	return &Client{endpoint: ep, userID: userID, keyPEM: keyPEM}, nil
}

// NodeExists reports whether the node is registered. It issues GET rather
// than HEAD: hosted servers do not implement HEAD on the node resource.
func (c *Client) NodeExists(ctx context.Context, name string) (bool, error) {
	if strings.TrimSpace(name) == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return false, c.fail(http.StatusBadRequest, model.CodeInvalidArgument, "invalid node name", "", nil)
	}
	api, base, err := c.client()
	if err != nil {
		return false, err
	}
	target := base + "nodes/" + url.PathEscape(name)

	req, err := api.NewRequest(http.MethodGet, "nodes/"+url.PathEscape(name), nil)
	if err != nil {
		return false, c.fail(http.StatusInternalServerError, model.CodeConfigError, "failed to sign request", target, err)
	}
	_, err = api.Do(req.WithContext(ctx), nil)

	var er *chef.ErrorResponse
	switch {
	case err == nil:
		return true, nil
	case errors.As(err, &er) && er.Response != nil:
		if er.Response.StatusCode == http.StatusNotFound {
			return false, nil
		}
		return false, c.fail(http.StatusBadGateway, model.CodeFetchFailed, fmt.Sprintf("unexpected status %d", er.Response.StatusCode), target, nil)
	case errors.Is(err, context.DeadlineExceeded) || isTimeout(err):
		return false, c.fail(http.StatusGatewayTimeout, model.CodeFetchTimeout, "request timed out", target, err)
	default:
		return false, c.fail(http.StatusBadGateway, model.CodeFetchFailed, "request failed", target, err)
	}
}

// client returns the API client for the current endpoint, with a trailing
// slash on the base so relative paths resolve under it.
func (c *Client) client() (*chef.Client, string, error) {
	u := c.endpoint.Endpoint()
	if u == nil {
		return nil, "", c.fail(http.StatusInternalServerError, model.CodeConfigError, "no endpoint configured", "", nil)
	}
	base := strings.TrimSuffix(u.String(), "/") + "/"

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.api != nil && c.base == base {
		return c.api, base, nil
	}
	api, err := chef.NewClient(&chef.Config{
		Name:                  c.userID,
		Key:                   c.keyPEM,
		BaseURL:               base,
		Timeout:               int(DefaultTimeout / time.Second),
		AuthenticationVersion: authVersion,
	})
	if err != nil {
		return nil, base, c.fail(http.StatusInternalServerError, model.CodeConfigError, "invalid coordination service client", base, err)
	}
	c.api, c.base = api, base
	return api, base, nil
}

func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}

func (c *Client) fail(status int, code, message, target string, cause error) error {
	return &Error{
		Status: status,
		AppError: model.AppError{
			Code:    code,
			Message: message,
			Stage:   "chefapi",
			URL:     target,
		},
		Cause: cause,
	}
}
