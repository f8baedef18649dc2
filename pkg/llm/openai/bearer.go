package openai

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
)

// tokenRefreshMargin — токен обновляется заранее, до истечения.
const tokenRefreshMargin = 2 * time.Minute

// bearerTransport подставляет Authorization: Bearer <token> в каждый запрос.
//
// Токен кэшируется до ExpiresOn - tokenRefreshMargin.
type bearerTransport struct {
	base  http.RoundTripper
	cred  azcore.TokenCredential
	scope string

	mu    sync.Mutex
	token azcore.AccessToken
}

// withBearer возвращает копию HTTP клиента с bearer транспортом.
// Исходный клиент не изменяется.
func withBearer(c *http.Client, cred azcore.TokenCredential, scope string) *http.Client {
	base := c.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	out := *c
	out.Transport = &bearerTransport{base: base, cred: cred, scope: scope}
	return &out
}

// RoundTrip реализует http.RoundTripper.
func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.current(req)
	if err != nil {
		return nil, err
	}
	r := req.Clone(req.Context())
	r.Header.Set("Authorization", "Bearer "+token)
	return t.base.RoundTrip(r)
}

func (t *bearerTransport) current(req *http.Request) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.token.Token != "" && time.Until(t.token.ExpiresOn) > tokenRefreshMargin {
		return t.token.Token, nil
	}
	tok, err := t.cred.GetToken(req.Context(), policy.TokenRequestOptions{Scopes: []string{t.scope}})
	if err != nil {
		return "", fmt.Errorf("get azure token for %s: %w", t.scope, err)
	}
	t.token = tok
	return tok.Token, nil
}
