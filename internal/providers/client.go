package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// httpJSON is the shared GET-and-decode used by all adapters. Non-200
// statuses become typed taxonomy errors; transport failures are translated
// by the caller's guard.
type httpJSON struct {
	provider string
	client   *http.Client
}

func newHTTPJSON(provider string) *httpJSON {
	// The per-attempt deadline comes from the request context; the client
	// timeout is only a backstop.
	return &httpJSON{provider: provider, client: &http.Client{Timeout: 90 * time.Second}}
}

func (h *httpJSON) get(ctx context.Context, url string, headers map[string]string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return newError(h.provider, ErrValidation, err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return translate(h.provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(h.provider, resp.StatusCode, resp.Header.Get("Retry-After"))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return newError(h.provider, ErrValidation, err)
	}
	return nil
}
