package textcompletion

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	commonhttp "carmarket-search/internal/common/http"
)

const completePath = "/api/ai/complete"

// HTTPClient talks to the completion service over JSON/HTTP.
type HTTPClient struct {
	url    string
	apiKey string
	client *commonhttp.Client
}

func NewHTTPClient(baseURL, apiKey string, timeout time.Duration, maxRetries int) *HTTPClient {
	return &HTTPClient{
		url:    strings.TrimRight(baseURL, "/") + completePath,
		apiKey: apiKey,
		client: commonhttp.NewClient(timeout, maxRetries),
	}
}

func (c *HTTPClient) Provider() string { return "http" }

func (c *HTTPClient) Complete(ctx context.Context, req Request) (string, error) {
	headers := map[string]string{}
	if c.apiKey != "" {
		headers["Authorization"] = "Bearer " + c.apiKey
	}

	var resp Response
	if err := c.client.PostJSON(ctx, c.url, headers, req, &resp); err != nil {
		if stderrors.Is(err, commonhttp.ErrRequestTimeout) && ctx.Err() == nil {
			return "", context.DeadlineExceeded
		}
		return "", err
	}
	if resp.Text == nil {
		return "", ErrEmptyCompletion
	}
	return *resp.Text, nil
}
