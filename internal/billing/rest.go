package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultHTTPTimeout = 30 * time.Second

// restClient sends JSON requests to a gateway API with a bearer secret.
type restClient struct {
	gateway    string
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

func newRESTClient(gateway, baseURL, secretKey string, httpClient *http.Client) restClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return restClient{
		gateway:    gateway,
		baseURL:    baseURL,
		secretKey:  secretKey,
		httpClient: httpClient,
	}
}

// do sends body (when non-nil) as JSON and returns the raw response body.
// Transport failures and 5xx responses wrap ErrGatewayUnavailable; other
// non-2xx responses are returned as *ProviderError.
func (c restClient) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: encode request: %w", c.gateway, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", c.gateway, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ProviderError{Gateway: c.gateway, Message: err.Error(), Err: ErrGatewayUnavailable}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &ProviderError{Gateway: c.gateway, StatusCode: resp.StatusCode, Message: "read response: " + err.Error(), Err: ErrGatewayUnavailable}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return raw, nil
	}

	pe := &ProviderError{
		Gateway:    c.gateway,
		StatusCode: resp.StatusCode,
		Message:    providerMessage(raw, resp.Status),
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		pe.Err = ErrInvalidAPIKey
	case resp.StatusCode == http.StatusNotFound:
		pe.Err = ErrTransactionNotFound
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		pe.Err = ErrGatewayUnavailable
	}
	return nil, pe
}

// providerMessage extracts the "message" field both Paystack and
// Flutterwave put on error bodies.
func providerMessage(raw []byte, fallback string) string {
	var envelope struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &envelope) == nil && envelope.Message != "" {
		return envelope.Message
	}
	return fallback
}
