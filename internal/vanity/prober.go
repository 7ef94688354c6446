package vanity

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/stacklok/boostsync/internal/httpclient"
)

// DefaultEndpoint is the invite lookup endpoint
const DefaultEndpoint = "https://discord.com/api/v10/invites"

// Prober checks whether an invite code currently resolves.
//
//go:generate mockgen -destination=mocks/mock_prober.go -package=mocks github.com/stacklok/boostsync/internal/vanity Prober
type Prober interface {
	// Probe returns ObservationMissing or ObservationTaken, or
	// ObservationError together with the underlying error
	Probe(ctx context.Context, code string) (Observation, error)
}

// HTTPProber probes an invite lookup endpoint over HTTP.
type HTTPProber struct {
	client   httpclient.Client
	endpoint string
}

// NewHTTPProber creates a prober for GET <endpoint>/{code}
func NewHTTPProber(client httpclient.Client, endpoint string) *HTTPProber {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &HTTPProber{
		client:   client,
		endpoint: strings.TrimRight(endpoint, "/"),
	}
}

// Probe classifies the lookup: 404 is missing, any 2xx/3xx is taken,
// everything else is an error. The response body is never read.
func (p *HTTPProber) Probe(ctx context.Context, code string) (Observation, error) {
	err := p.client.Check(ctx, p.endpoint+"/"+url.PathEscape(code))
	if err == nil {
		return ObservationTaken, nil
	}
	if httpclient.StatusCode(err) == http.StatusNotFound {
		return ObservationMissing, nil
	}
	return ObservationError, err
}
