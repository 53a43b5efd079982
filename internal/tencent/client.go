// Package tencent builds and sends the cookie-authenticated console API calls
// for the compute (cvm) and block-storage (cbs) planes.
package tencent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"

	"github.com/xiansir-zhe/cloud-tool/internal/core"
	"github.com/xiansir-zhe/cloud-tool/internal/logging"
)

const (
	DefaultComputeBaseURL      = "https://workbench.cloud.tencent.com"
	DefaultBlockStorageBaseURL = "https://capi.cloud.tencent.com"

	gatewayPath = "/cgi/capi"
)

// ErrDecode marks a reply body that is not a JSON object.
var ErrDecode = errors.New("unable to parse response")

// DecodeError carries the raw body of a reply that could not be decoded.
// It matches ErrDecode with errors.Is.
type DecodeError struct {
	Body []byte
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: %v", ErrDecode, e.Err)
}

func (e *DecodeError) Unwrap() []error { return []error{ErrDecode, e.Err} }

// Options configures a Client.
type Options struct {
	ComputeBaseURL      string
	BlockStorageBaseURL string
	Timeout             time.Duration
	RetryMax            int
	MinInterval         time.Duration
	Logger              zerolog.Logger
}

// Client sends vendor calls. It is safe for concurrent use.
type Client struct {
	http        *retryablehttp.Client
	computeBase string
	storageBase string
	limiter     *RateLimiter
	logger      zerolog.Logger
}

// NewClient creates a vendor client. Retries are off unless opts.RetryMax is set:
// the operations are not idempotent.
func NewClient(opts Options) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = opts.RetryMax
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.HTTPClient.Timeout = opts.Timeout
	rc.Logger = logging.NewLeveledLogger(opts.Logger)
	// Hand non-2xx replies back to the caller; the gateway explains failures in the body.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	c := &Client{
		http:        rc,
		computeBase: strings.TrimRight(opts.ComputeBaseURL, "/"),
		storageBase: strings.TrimRight(opts.BlockStorageBaseURL, "/"),
		limiter:     NewRateLimiter(opts.MinInterval),
		logger:      opts.Logger,
	}
	if c.computeBase == "" {
		c.computeBase = DefaultComputeBaseURL
	}
	if c.storageBase == "" {
		c.storageBase = DefaultBlockStorageBaseURL
	}
	return c
}

// Endpoint returns the URL for action. A non-empty region routes to the compute plane,
// an empty one to the block-storage plane.
func (c *Client) Endpoint(action, accountID, region string) string {
	if region != "" {
		return fmt.Sprintf("%s%s?i=cvm/%s&uin=%s&region=%s",
			c.computeBase, gatewayPath, action, url.QueryEscape(accountID), url.QueryEscape(region))
	}
	return fmt.Sprintf("%s%s?i=cbs/%s&uin=%s",
		c.storageBase, gatewayPath, action, url.QueryEscape(accountID))
}

// Build assembles the POST request for one call without sending it.
func (c *Client) Build(ctx context.Context, env Envelope, creds core.CredentialBundle, accountID, region string) (*retryablehttp.Request, error) {
	body, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint(env.Action, accountID, region), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	setHeaders(req.Header, creds)
	return req, nil
}

// Call sends one envelope and decodes the reply. Transport failures are returned as errors;
// a body that is not a JSON object yields an error wrapping ErrDecode.
func (c *Client) Call(ctx context.Context, env Envelope, creds core.CredentialBundle, accountID, region string) (Reply, error) {
	plane := "cbs"
	if region != "" {
		plane = "cvm"
	}
	if err := c.limiter.Wait(ctx, plane); err != nil {
		return nil, err
	}

	req, err := c.Build(ctx, env, creds, accountID, region)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", plane, env.Action, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	c.logger.Debug().
		Str("action", env.Action).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("vendor call")

	return decodeReply(data)
}

func decodeReply(data []byte) (Reply, error) {
	var reply Reply
	if err := json.Unmarshal(bytes.TrimSpace(data), &reply); err != nil {
		return nil, &DecodeError{Body: data, Err: err}
	}
	if reply == nil {
		return nil, &DecodeError{Body: data, Err: errors.New("empty reply")}
	}
	return reply, nil
}
