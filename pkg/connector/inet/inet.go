package inet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/huttotw/kia-connect/internal/log"
	"github.com/huttotw/kia-connect/pkg/connector"
	"github.com/huttotw/kia-connect/pkg/protocol"
)

// DefaultServerURL is the base URL of the Kia Owners portal services.
const DefaultServerURL = "https://owners.kia.com/apps/services/owners"

// DefaultTimeout bounds a single HTTP exchange.
var DefaultTimeout = 30 * time.Second

// maxLoggedBody truncates response bodies in debug logs.
const maxLoggedBody = 512

func ReadWithContext(ctx context.Context, r io.Reader, p []byte) ([]byte, error) {
	bytesRead := 0
	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		n, err := r.Read(p[bytesRead:])
		bytesRead += n
		if err == io.EOF {
			return p[:bytesRead], nil
		}
		if err != nil {
			return p[:bytesRead], err
		}
		if bytesRead == len(p) {
			return p[:bytesRead], nil
		}
	}
}

type HttpError struct {
	Code    int
	Message string
}

func (e *HttpError) Error() string {
	if e.Message == "" {
		return http.StatusText(e.Code)
	}
	return fmt.Sprintf("%s: %s", http.StatusText(e.Code), e.Message)
}

func (e *HttpError) MayHaveSucceeded() bool {
	if e.Code >= 400 && e.Code < 500 {
		return false
	}
	return e.Code != http.StatusServiceUnavailable
}

func (e *HttpError) Temporary() bool {
	return e.Code == http.StatusServiceUnavailable ||
		e.Code == http.StatusBadGateway ||
		e.Code == http.StatusGatewayTimeout ||
		e.Code == http.StatusRequestTimeout ||
		e.Code == http.StatusTooManyRequests
}

// IsUnauthorized returns true if err is an HttpError indicating the server rejected the session.
func IsUnauthorized(err error) bool {
	var httpErr *HttpError
	return errors.As(err, &httpErr) && (httpErr.Code == http.StatusUnauthorized || httpErr.Code == http.StatusForbidden)
}

// Connection implements the connector.Connector interface over HTTPS.
type Connection struct {
	UserAgent string
	serverURL string
	client    http.Client
}

// NewConnection creates a Connection. An empty serverURL selects DefaultServerURL.
func NewConnection(serverURL, userAgent string) *Connection {
	if serverURL == "" {
		serverURL = DefaultServerURL
	}
	return &Connection{
		UserAgent: userAgent,
		serverURL: strings.TrimSuffix(serverURL, "/"),
		client:    http.Client{Timeout: DefaultTimeout},
	}
}

// SetHTTPClient replaces the underlying HTTP client, e.g. to configure a proxy or TLS roots.
func (c *Connection) SetHTTPClient(client *http.Client) {
	c.client = *client
}

// ServerURL returns the base URL requests are sent to.
func (c *Connection) ServerURL() string {
	return c.serverURL
}

func (c *Connection) url(endpoint string) string {
	return c.serverURL + "/" + strings.TrimPrefix(endpoint, "/")
}

func (c *Connection) Get(ctx context.Context, endpoint string, query url.Values, header http.Header) (*connector.Response, error) {
	target := c.url(endpoint)
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &protocol.TransportError{Op: "GET " + endpoint, Err: err}
	}
	c.setHeaders(request, header)
	log.Debug("Requesting %s...", c.url(endpoint))
	return c.do(ctx, request, endpoint)
}

func (c *Connection) PostForm(ctx context.Context, endpoint string, form url.Values, header http.Header) (*connector.Response, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(endpoint), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &protocol.TransportError{Op: "POST " + endpoint, Err: err}
	}
	c.setHeaders(request, header)
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	// Form bodies contain credentials, so only the URL is logged.
	log.Debug("Posting form to %s...", c.url(endpoint))
	return c.do(ctx, request, endpoint)
}

func (c *Connection) setHeaders(request *http.Request, header http.Header) {
	for name, values := range header {
		for _, v := range values {
			request.Header.Add(name, v)
		}
	}
	request.Header.Set("Accept", "application/json, text/plain, */*")
	request.Header.Set("Accept-Language", "en-US,en;q=0.7")
	request.Header.Set("Cache-Control", "no-cache")
	if c.UserAgent != "" {
		request.Header.Set("User-Agent", c.UserAgent)
	}
}

func (c *Connection) do(ctx context.Context, request *http.Request, endpoint string) (*connector.Response, error) {
	op := request.Method + " " + endpoint
	result, err := c.client.Do(request)
	if err != nil {
		return nil, &protocol.TransportError{Op: op, Err: err}
	}
	defer result.Body.Close()

	body := make([]byte, connector.MaxResponseLength+1)
	body, err = ReadWithContext(ctx, result.Body, body)
	if err != nil {
		return nil, &protocol.TransportError{Op: op, Err: err, PossibleSuccess: true}
	}
	if len(body) == connector.MaxResponseLength+1 {
		return nil, &protocol.ProtocolError{Op: op, Err: errors.New("response exceeds maximum length"), PossibleSuccess: true}
	}

	log.Debug("Server returned %d: %s: %s", result.StatusCode, http.StatusText(result.StatusCode), truncate(body))
	if result.StatusCode != http.StatusOK {
		return nil, &HttpError{Code: result.StatusCode, Message: strings.TrimSpace(string(truncate(body)))}
	}
	return &connector.Response{
		StatusCode: result.StatusCode,
		Header:     result.Header,
		Cookies:    result.Cookies(),
		Body:       body,
	}, nil
}

func truncate(body []byte) []byte {
	if len(body) > maxLoggedBody {
		return body[:maxLoggedBody]
	}
	return body
}
