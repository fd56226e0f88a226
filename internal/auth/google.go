package auth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"notesaver/internal/models"

	"github.com/pkg/errors"
)

// ErrIdentityRejected means the provider did not vouch for the presented
// access token.
var ErrIdentityRejected = errors.New("identity provider rejected the credential")

// GoogleVerifier resolves a Google OAuth access token to the account it was
// issued for by calling the userinfo endpoint.
type GoogleVerifier struct {
	userInfoURL string
	client      *http.Client
}

// NewGoogleVerifier creates a verifier against userInfoURL. A nil client
// gets a default one with a 10 second timeout.
func NewGoogleVerifier(userInfoURL string, client *http.Client) *GoogleVerifier {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &GoogleVerifier{
		userInfoURL: userInfoURL,
		client:      client,
	}
}

type googleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
}

// Verify asks Google who accessToken belongs to. Only accounts with a
// verified email are accepted.
func (v *GoogleVerifier) Verify(ctx context.Context, accessToken string) (*models.FederatedIdentity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.userInfoURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create user info request")
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get user info")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		io.Copy(io.Discard, resp.Body)
		return nil, errors.Wrapf(ErrIdentityRejected, "user info request returned %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, errors.Errorf("user info request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, errors.Wrap(err, "failed to decode user info response")
	}

	if info.Email == "" {
		return nil, errors.Wrap(ErrIdentityRejected, "user info has no email")
	}
	if !info.VerifiedEmail {
		return nil, errors.Wrap(ErrIdentityRejected, "email not verified")
	}

	return &models.FederatedIdentity{
		Email: info.Email,
		Name:  displayName(info),
	}, nil
}

func displayName(info googleUserInfo) string {
	if name := strings.TrimSpace(info.Name); name != "" {
		return name
	}
	if name := strings.TrimSpace(info.GivenName + " " + info.FamilyName); name != "" {
		return name
	}
	local, _, _ := strings.Cut(info.Email, "@")
	return local
}
