package idp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	idpmetrics "flock/internal/idp/metrics"
	dErrors "flock/pkg/domain-errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// HTTPClient implements Client against an Auth0-shaped IdP API. Management
// calls authenticate with a cached client-credentials token; userinfo and
// signup use the caller-supplied credentials instead.
type HTTPClient struct {
	baseURL    string
	clientID   string
	connection string
	httpClient *http.Client
	tokens     *tokenSource
	tracer     trace.Tracer
	metrics    *idpmetrics.Metrics
}

// Ensure HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)

// HTTPClientConfig carries the IdP connection settings.
type HTTPClientConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Audience     string
	Connection   string
	Timeout      time.Duration
}

// HTTPClientOption configures the HTTPClient.
type HTTPClientOption func(*HTTPClient)

// WithHTTPClient sets a custom HTTP client (for testing).
func WithHTTPClient(client *http.Client) HTTPClientOption {
	return func(c *HTTPClient) {
		c.httpClient = client
		c.tokens.httpClient = client
	}
}

// WithMetrics records remote call durations and failures.
func WithMetrics(m *idpmetrics.Metrics) HTTPClientOption {
	return func(c *HTTPClient) {
		c.metrics = m
	}
}

// NewHTTPClient creates an HTTP-based IdP client.
func NewHTTPClient(cfg HTTPClientConfig, opts ...HTTPClientOption) *HTTPClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	httpClient := &http.Client{Timeout: timeout}
	c := &HTTPClient{
		baseURL:    cfg.BaseURL,
		clientID:   cfg.ClientID,
		connection: cfg.Connection,
		httpClient: httpClient,
		tokens:     newTokenSource(cfg.BaseURL, cfg.ClientID, cfg.ClientSecret, cfg.Audience, httpClient),
		tracer:     otel.Tracer("flock/idp"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateRole creates a role and returns the IdP-assigned id.
func (c *HTTPClient) CreateRole(ctx context.Context, name, description string) (id string, err error) {
	defer c.observe("create_role", time.Now(), &err)
	ctx, span := c.tracer.Start(ctx, "idp.create_role")
	defer func() { endSpan(span, err) }()

	body, err := c.management(ctx, http.MethodPost, "/api/v2/roles", map[string]string{
		"name":        name,
		"description": description,
	}, http.StatusOK, http.StatusCreated)
	if err != nil {
		return "", err
	}

	// The id must be present and a string; anything else means the remote
	// contract changed and no local write may happen.
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeRemote, "decode create role response")
	}
	roleID, ok := payload["id"].(string)
	if !ok || roleID == "" {
		return "", dErrors.New(dErrors.CodeRemote, "identity provider did not return a role id")
	}
	return roleID, nil
}

// UpdateRole applies a partial update. Any non-success status is a remote
// failure; the caller decides what that means for local state.
func (c *HTTPClient) UpdateRole(ctx context.Context, id string, patch RolePatch) (err error) {
	defer c.observe("update_role", time.Now(), &err)
	ctx, span := c.tracer.Start(ctx, "idp.update_role")
	defer func() { endSpan(span, err) }()

	_, err = c.management(ctx, http.MethodPatch, "/api/v2/roles/"+url.PathEscape(id), patch, http.StatusOK)
	return err
}

// DeleteRole removes a role. 404 maps to a not_found domain error so the
// caller can stop before touching local state.
func (c *HTTPClient) DeleteRole(ctx context.Context, id string) (err error) {
	defer c.observe("delete_role", time.Now(), &err)
	ctx, span := c.tracer.Start(ctx, "idp.delete_role")
	defer func() { endSpan(span, err) }()

	_, err = c.management(ctx, http.MethodDelete, "/api/v2/roles/"+url.PathEscape(id), nil,
		http.StatusOK, http.StatusNoContent)
	return err
}

// AssignRolesToUser grants roles to a user on the IdP side.
func (c *HTTPClient) AssignRolesToUser(ctx context.Context, userRef string, roleIDs []string) (err error) {
	defer c.observe("assign_roles", time.Now(), &err)
	ctx, span := c.tracer.Start(ctx, "idp.assign_roles")
	defer func() { endSpan(span, err) }()

	_, err = c.management(ctx, http.MethodPost, "/api/v2/users/"+url.PathEscape(userRef)+"/roles",
		map[string][]string{"roles": roleIDs}, http.StatusOK, http.StatusNoContent)
	return err
}

// ListRoles returns the remote role catalog.
func (c *HTTPClient) ListRoles(ctx context.Context) (roles []Role, err error) {
	defer c.observe("list_roles", time.Now(), &err)
	ctx, span := c.tracer.Start(ctx, "idp.list_roles")
	defer func() { endSpan(span, err) }()

	body, err := c.management(ctx, http.MethodGet, "/api/v2/roles", nil, http.StatusOK)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(body, &roles); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeRemote, "decode role list response")
	}
	return roles, nil
}

// FetchUserProfile resolves the subject's profile with the subject's own
// bearer token, never the management token.
func (c *HTTPClient) FetchUserProfile(ctx context.Context, accessToken string) (profile *UserProfile, err error) {
	defer c.observe("userinfo", time.Now(), &err)
	ctx, span := c.tracer.Start(ctx, "idp.userinfo")
	defer func() { endSpan(span, err) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/userinfo", nil)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "build userinfo request")
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	body, err := c.do(req, http.StatusOK)
	if err != nil {
		return nil, err
	}

	var p UserProfile
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeRemote, "decode userinfo response")
	}
	return &p, nil
}

type signupPayload struct {
	ClientID   string            `json:"client_id"`
	Connection string            `json:"connection"`
	Email      string            `json:"email"`
	Password   string            `json:"password"`
	Username   string            `json:"username,omitempty"`
	GivenName  string            `json:"given_name,omitempty"`
	FamilyName string            `json:"family_name,omitempty"`
	Name       string            `json:"name,omitempty"`
	Nickname   string            `json:"nickname,omitempty"`
	Picture    string            `json:"picture,omitempty"`
	Metadata   map[string]string `json:"user_metadata,omitempty"`
}

// SignupUser creates the credential-bearing account on the IdP and returns
// the assigned user id. Signup is an unauthenticated IdP endpoint scoped by
// client id and connection name.
func (c *HTTPClient) SignupUser(ctx context.Context, r SignupRequest) (userID string, err error) {
	defer c.observe("signup", time.Now(), &err)
	ctx, span := c.tracer.Start(ctx, "idp.signup")
	defer func() { endSpan(span, err) }()

	body, err := json.Marshal(signupPayload{
		ClientID:   c.clientID,
		Connection: c.connection,
		Email:      r.Email,
		Password:   r.Password,
		Username:   r.Username,
		GivenName:  r.GivenName,
		FamilyName: r.FamilyName,
		Name:       r.Name,
		Nickname:   r.Nickname,
		Picture:    r.Picture,
		Metadata:   r.Metadata,
	})
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "marshal signup request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/dbconnections/signup", bytes.NewReader(body))
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "build signup request")
	}
	req.Header.Set("Content-Type", "application/json")

	raw, err := c.do(req, http.StatusOK)
	if err != nil {
		return "", err
	}

	var created struct {
		ID string `json:"_id"`
	}
	if err := json.Unmarshal(raw, &created); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeRemote, "decode signup response")
	}
	if created.ID == "" {
		return "", dErrors.New(dErrors.CodeRemote, "identity provider returned no user id on signup")
	}
	return created.ID, nil
}

// management performs an authenticated management API call and returns the
// response body on an expected status.
func (c *HTTPClient) management(ctx context.Context, method, path string, payload any, expect ...int) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "marshal request body")
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "build request")
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	return c.do(req, expect...)
}

// do executes the request and classifies the response status. 404 maps to a
// not_found domain error; every other unexpected status is remote_error.
func (c *HTTPClient) do(req *http.Request, expect ...int) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if req.Context().Err() == context.DeadlineExceeded {
			return nil, dErrors.Wrap(err, dErrors.CodeRemote, "identity provider request timed out")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeRemote, "identity provider request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeRemote, "read identity provider response")
	}

	for _, status := range expect {
		if resp.StatusCode == status {
			return body, nil
		}
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, dErrors.New(dErrors.CodeNotFound, "identity provider resource not found")
	}
	return nil, dErrors.New(dErrors.CodeRemote,
		fmt.Sprintf("identity provider returned status %d", resp.StatusCode))
}

func (c *HTTPClient) observe(operation string, start time.Time, err *error) {
	if c.metrics == nil {
		return
	}
	c.metrics.ObserveCall(operation, time.Since(start), *err != nil)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
