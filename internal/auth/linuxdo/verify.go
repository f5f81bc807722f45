package linuxdo

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Verifier checks that a stored provider token still authenticates
// against the userinfo endpoint. Used before trusting admin requests.
type Verifier struct {
	httpClient *http.Client
	endpoint   string
}

// NewVerifier builds a verifier against the provider's userinfo endpoint.
func NewVerifier() *Verifier {
	return &Verifier{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		endpoint:   userInfoURL,
	}
}

// Verify returns nil when the provider still accepts the token.
func (v *Verifier) Verify(ctx context.Context, token string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("userinfo request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("provider rejected token with status %d", resp.StatusCode)
	}
	return nil
}
