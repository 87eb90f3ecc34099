package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPClient talks to the hosted backend over its REST surface. Auth
// endpoints live under {base}/auth/v1, table access under {base}/rest/v1.
// The API key identifies the application; per-request bearer tokens carry
// the subject's session where one exists.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	serviceKey string
	httpc      *http.Client
}

// HTTPClientOptions configure an HTTPClient.
type HTTPClientOptions struct {
	// BaseURL is the backend project URL. Required.
	BaseURL string
	// APIKey is the public (anon) API key. Required.
	APIKey string
	// ServiceKey, when set, is used as the bearer token for table access
	// performed without a subject session (the proxy's privileged reads).
	ServiceKey string
	// HTTPClient overrides the transport. Defaults to a client with a
	// 10 second overall timeout; callers bound individual calls tighter
	// via context.
	HTTPClient *http.Client
}

// NewHTTPClient validates the connection configuration and builds a client.
func NewHTTPClient(opts HTTPClientOptions) (*HTTPClient, error) {
	if opts.BaseURL == "" || opts.APIKey == "" {
		return nil, ErrMissingConfig
	}
	if _, err := url.Parse(opts.BaseURL); err != nil {
		return nil, fmt.Errorf("backend: invalid base URL %q: %w", opts.BaseURL, err)
	}
	httpc := opts.HTTPClient
	if httpc == nil {
		httpc = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiKey:     opts.APIKey,
		serviceKey: opts.ServiceKey,
		httpc:      httpc,
	}, nil
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	User         *struct {
		ID           string         `json:"id"`
		Email        string         `json:"email"`
		UserMetadata map[string]any `json:"user_metadata"`
	} `json:"user"`
}

func (tr *tokenResponse) session(now time.Time) *Session {
	sess := &Session{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		TokenType:    tr.TokenType,
	}
	if tr.ExpiresIn > 0 {
		sess.ExpiresAt = now.Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	if tr.User != nil {
		sess.Subject = tr.User.ID
		sess.Email = tr.User.Email
		sess.UserMetadata = tr.User.UserMetadata
	}
	if sess.Subject == "" {
		// Older backend revisions omit the user object on refresh; fall
		// back to the token's own claims.
		if claims, err := ParseAccessToken(tr.AccessToken); err == nil {
			sess.Subject = claims.Subject
			sess.Email = claims.Email
			if sess.ExpiresAt.IsZero() {
				sess.ExpiresAt = claims.ExpiresAt
			}
		}
	}
	return sess
}

// SignIn implements AuthClient.
func (c *HTTPClient) SignIn(ctx context.Context, email, password string) (*Session, error) {
	body := map[string]string{"email": email, "password": password}
	var out tokenResponse
	if err := c.doJSON(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", "", body, &out); err != nil {
		return nil, err
	}
	return out.session(time.Now()), nil
}

// Refresh implements AuthClient.
func (c *HTTPClient) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	body := map[string]string{"refresh_token": refreshToken}
	var out tokenResponse
	if err := c.doJSON(ctx, http.MethodPost, "/auth/v1/token?grant_type=refresh_token", "", body, &out); err != nil {
		return nil, err
	}
	return out.session(time.Now()), nil
}

type signUpResponse struct {
	tokenResponse
	// Set instead of the token fields when confirmation is pending.
	ID    string `json:"id"`
	Email string `json:"email"`
}

// SignUp implements AuthClient.
func (c *HTTPClient) SignUp(ctx context.Context, email, password string, hints ProfileHints) (*SignUpResult, error) {
	data := map[string]any{}
	if hints.FirstName != "" {
		data["first_name"] = hints.FirstName
	}
	if hints.LastName != "" {
		data["last_name"] = hints.LastName
	}
	if hints.Role != "" {
		data["role"] = hints.Role
	}
	body := map[string]any{"email": email, "password": password, "data": data}

	var out signUpResponse
	if err := c.doJSON(ctx, http.MethodPost, "/auth/v1/signup", "", body, &out); err != nil {
		return nil, err
	}
	if out.AccessToken == "" {
		// Confirmation required: the backend created the subject but
		// issued no session.
		result := &SignUpResult{Subject: out.ID, Email: out.Email}
		if result.Subject == "" && out.User != nil {
			result.Subject = out.User.ID
			result.Email = out.User.Email
		}
		return result, nil
	}
	sess := out.session(time.Now())
	return &SignUpResult{Session: sess, Subject: sess.Subject, Email: sess.Email}, nil
}

// SignOut implements AuthClient.
func (c *HTTPClient) SignOut(ctx context.Context, accessToken string) error {
	return c.doJSON(ctx, http.MethodPost, "/auth/v1/logout", accessToken, nil, nil)
}

// QueryProfileByID implements DataClient.
func (c *HTTPClient) QueryProfileByID(ctx context.Context, id string) (*ProfileRow, error) {
	path := "/rest/v1/profiles?select=id,email,first_name,last_name&id=eq." + url.QueryEscape(id)
	var rows []ProfileRow
	if err := c.doJSON(ctx, http.MethodGet, path, c.serviceKey, nil, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

// UpsertProfile implements DataClient. The merge-duplicates preference gives
// insert-or-update semantics keyed by the primary key, so two tabs racing on
// first sign-in converge on one row instead of one of them erroring.
func (c *HTTPClient) UpsertProfile(ctx context.Context, row ProfileRow) (*ProfileRow, error) {
	var rows []ProfileRow
	err := c.do(ctx, http.MethodPost, "/rest/v1/profiles", c.serviceKey, row, &rows, map[string]string{
		"Prefer": "resolution=merge-duplicates,return=representation",
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		// Representation elided; echo the input, the write succeeded.
		return &row, nil
	}
	return &rows[0], nil
}

// QueryMembershipsWithOrganizations implements DataClient.
func (c *HTTPClient) QueryMembershipsWithOrganizations(ctx context.Context, subjectID string) ([]MembershipJoinRow, error) {
	path := "/rest/v1/user_organizations?select=organization_id,organizations(id,name,slug,created_at,updated_at)&user_id=eq." +
		url.QueryEscape(subjectID)
	var rows []MembershipJoinRow
	if err := c.doJSON(ctx, http.MethodGet, path, c.serviceKey, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *HTTPClient) doJSON(ctx context.Context, method, path, bearer string, in, out any) error {
	return c.do(ctx, method, path, bearer, in, out, nil)
}

func (c *HTTPClient) do(ctx context.Context, method, path, bearer string, in, out any, headers map[string]string) error {
	op := method + " " + strings.SplitN(path, "?", 2)[0]

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("backend: %s: encode request: %w", op, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("backend: %s: build request: %w", op, err)
	}
	req.Header.Set("apikey", c.apiKey)
	token := bearer
	if token == "" {
		token = c.apiKey
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return &TransientError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return &TransientError{Op: op, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode >= 400 {
		return parseAuthError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransientError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// parseAuthError maps a 4xx response body to an AuthError. The backend has
// used several error body shapes across versions; probe the known fields.
func parseAuthError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var body struct {
		Error            string `json:"error"`
		ErrorCode        string `json:"error_code"`
		ErrorDescription string `json:"error_description"`
		Msg              string `json:"msg"`
		Message          string `json:"message"`
	}
	_ = json.Unmarshal(raw, &body)

	code := body.ErrorCode
	if code == "" {
		code = body.Error
	}
	if resp.StatusCode == http.StatusTooManyRequests && code == "" {
		code = "rate_limited"
	}
	message := body.ErrorDescription
	if message == "" {
		message = body.Msg
	}
	if message == "" {
		message = body.Message
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}
	return &AuthError{Status: resp.StatusCode, Code: code, Message: message}
}
