package gateways

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/reviewboard/rbrelease/internal/domain/entities"
	"github.com/reviewboard/rbrelease/internal/domain/interfaces/gateways"
)

// maxResponseBody bounds how much of an API response is kept for reporting
const maxResponseBody = 64 * 1024

// ReleaseAPIGateway posts release metadata to the website's release API
type ReleaseAPIGateway struct {
	client      *retryablehttp.Client
	releasesURL string
	credentials entities.Credentials
	userAgent   string
}

// ReleaseAPIConfig configures the release API gateway
type ReleaseAPIConfig struct {
	ReleasesURL string
	Credentials entities.Credentials
	RetryMax    int           // transport retries; zero disables retrying
	Timeout     time.Duration // zero means no timeout
}

// NewReleaseAPIGateway creates a gateway authenticating every request with
// the given credentials
func NewReleaseAPIGateway(config ReleaseAPIConfig) *ReleaseAPIGateway {
	client := retryablehttp.NewClient()
	client.HTTPClient.Timeout = config.Timeout
	client.RetryMax = config.RetryMax
	client.Logger = nil
	client.CheckRetry = transportOnlyRetryPolicy
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &ReleaseAPIGateway{
		client:      client,
		releasesURL: config.ReleasesURL,
		credentials: config.Credentials,
		userAgent:   "rbrelease/1.0",
	}
}

// transportOnlyRetryPolicy retries connection failures only. Any HTTP
// response, whatever its status, is handed back to the caller.
func transportOnlyRetryPolicy(ctx context.Context, _ *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	return err != nil, nil
}

// EncodeForm encodes ordered fields as a multipart/form-data body and
// returns it with its content type
func EncodeForm(fields []entities.FormField) ([]byte, string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	for _, field := range fields {
		if err := writer.WriteField(field.Name, field.Value); err != nil {
			return nil, "", fmt.Errorf("failed to encode field %s: %w", field.Name, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finish form: %w", err)
	}

	return body.Bytes(), writer.FormDataContentType(), nil
}

// RegisterRelease posts the metadata as a multipart form. Any HTTP response
// is returned as a result; only transport failures produce an error.
func (g *ReleaseAPIGateway) RegisterRelease(ctx context.Context, metadata entities.ReleaseMetadata) (*gateways.RegistrationResult, error) {
	body, contentType, err := EncodeForm(metadata.FormFields())
	if err != nil {
		return nil, err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, g.releasesURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", g.userAgent)
	req.SetBasicAuth(g.credentials.Username, g.credentials.Password)

	resp, err := g.client.Do(req)
	if err != nil {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		return nil, fmt.Errorf("failed to post release to %s: %w", g.releasesURL, err)
	}
	//nolint:errcheck // Defer close on response body
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return &gateways.RegistrationResult{
		StatusCode: resp.StatusCode,
		Body:       string(respBody),
	}, nil
}
