package idp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	dErrors "flock/pkg/domain-errors"

	"golang.org/x/sync/singleflight"
)

// tokenSource obtains and caches the management API token via the client
// credentials grant. Concurrent refreshes are collapsed into a single request
// with singleflight; the cached token is reused until shortly before expiry.
type tokenSource struct {
	baseURL      string
	clientID     string
	clientSecret string
	audience     string
	httpClient   *http.Client
	now          func() time.Time

	group singleflight.Group

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// expirySkew renews the token early so in-flight requests never carry a token
// that expires mid-call.
const expirySkew = 30 * time.Second

func newTokenSource(baseURL, clientID, clientSecret, audience string, httpClient *http.Client) *tokenSource {
	return &tokenSource{
		baseURL:      baseURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		audience:     audience,
		httpClient:   httpClient,
		now:          time.Now,
	}
}

type tokenRequest struct {
	GrantType    string `json:"grant_type"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	Audience     string `json:"audience"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Token returns a valid management token, refreshing it if needed.
func (s *tokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.token != "" && s.now().Add(expirySkew).Before(s.expiresAt) {
		token := s.token
		s.mu.Unlock()
		return token, nil
	}
	s.mu.Unlock()

	v, err, _ := s.group.Do("management-token", func() (any, error) {
		return s.fetch(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (s *tokenSource) fetch(ctx context.Context) (string, error) {
	body, err := json.Marshal(tokenRequest{
		GrantType:    "client_credentials",
		ClientID:     s.clientID,
		ClientSecret: s.clientSecret,
		Audience:     s.audience,
	})
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "marshal token request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/oauth/token", bytes.NewReader(body))
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "build token request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeRemote, "identity provider token request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", dErrors.New(dErrors.CodeRemote,
			fmt.Sprintf("identity provider token request returned status %d", resp.StatusCode))
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeRemote, "decode token response")
	}
	if tr.AccessToken == "" {
		return "", dErrors.New(dErrors.CodeRemote, "identity provider returned an empty token")
	}

	s.mu.Lock()
	s.token = tr.AccessToken
	s.expiresAt = s.now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	s.mu.Unlock()

	return tr.AccessToken, nil
}
