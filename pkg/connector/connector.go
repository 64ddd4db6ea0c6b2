package connector

import (
	"context"
	"net/http"
	"net/url"
)

// MaxResponseLength caps the maximum byte-length of responses that connectors must support.
// Vehicle-info replies for accounts with several vehicles run to a few hundred kilobytes.
const MaxResponseLength = 4 << 20

// Response is a fully-read reply from the portal.
type Response struct {
	StatusCode int
	Header     http.Header
	Cookies    []*http.Cookie
	Body       []byte
}

// Connector sends requests to the Kia Owners portal. Endpoints are paths relative to the
// connector's base URL (e.g., "remotevehicledata").
//
// Implementations must be thread safe.
type Connector interface {
	// Get sends a GET request with the provided query parameters and headers.
	Get(ctx context.Context, endpoint string, query url.Values, header http.Header) (*Response, error)

	// PostForm sends a form-encoded POST request.
	//
	// Depending on the error, the server may have received and even acted on the request. If the
	// returned error implements the protocol.Error interface, the client may be able to determine
	// if this is the case by using the appropriate methods.
	PostForm(ctx context.Context, endpoint string, form url.Values, header http.Header) (*Response, error)
}
