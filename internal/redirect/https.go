package redirect

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/tlsgatedev/tlsgate/internal/pipeline"
)

// ForwardedProtoHeader is consulted to detect TLS termination at an
// upstream proxy. Header name lookup is case-insensitive per http.Header.
const ForwardedProtoHeader = "X-Forwarded-Proto"

// HTTPSAndHost redirects insecure requests to the HTTPS equivalent on a
// configured host. A request counts as secure when its URL scheme is
// https or when X-Forwarded-Proto says https; everything else gets a
// 301 pointing at https://<host><path>[?<query>].
//
// The host is validated once at construction and read-only afterwards,
// so the policy is safe to share across concurrent dispatches.
type HTTPSAndHost struct {
	host        string
	strictProto bool
}

// Option configures an HTTPSAndHost policy.
type Option func(*HTTPSAndHost)

// WithStrictProtoMatch makes the X-Forwarded-Proto value comparison
// case-sensitive. The default accepts any capitalization of "https".
func WithStrictProtoMatch() Option {
	return func(p *HTTPSAndHost) { p.strictProto = true }
}

// NewHTTPSAndHost creates the policy for the given redirect target
// authority (host or host:port). A malformed authority is rejected here,
// never deferred to per-request handling.
func NewHTTPSAndHost(host string, opts ...Option) (*HTTPSAndHost, error) {
	if err := ValidateAuthority(host); err != nil {
		return nil, fmt.Errorf("redirect: invalid host %q: %w", host, err)
	}
	p := &HTTPSAndHost{host: host}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Host returns the configured redirect target authority.
func (p *HTTPSAndHost) Host() string {
	return p.host
}

// Redirect implements the Redirector interface.
func (p *HTTPSAndHost) Redirect(req *pipeline.Request) Decision {
	// A scheme is only present on proxied requests that arrived with an
	// absolute URL; a plain server request carries a relative URL.
	secureScheme := req.Scheme() == "https"

	proto := req.Header.Get(ForwardedProtoHeader)
	var forwardedSecure bool
	if p.strictProto {
		forwardedSecure = proto == "https"
	} else {
		forwardedSecure = strings.EqualFold(proto, "https")
	}

	log.Trace().
		Bool("secure_scheme", secureScheme).
		Bool("forwarded_secure", forwardedSecure).
		Msg("https policy decision")

	if secureScheme || forwardedSecure {
		return Continue()
	}

	// Replace scheme and authority, keep path and query verbatim.
	target := *req.URL
	target.Scheme = "https"
	target.Host = p.host

	resp := pipeline.NewResponse(http.StatusMovedPermanently)
	resp.Header.Set("Location", target.String())
	return Intercept(resp)
}

// ValidateAuthority checks that s is a syntactically valid host[:port]
// authority: a bare hostname, a bracketed IPv6 literal, or either with a
// numeric port.
func ValidateAuthority(s string) error {
	if s == "" {
		return errors.New("authority must not be empty")
	}

	host := s
	if h, port, err := net.SplitHostPort(s); err == nil {
		if port == "" {
			return errors.New("missing port after colon")
		}
		n, convErr := strconv.Atoi(port)
		if convErr != nil || n < 1 || n > 65535 {
			return fmt.Errorf("invalid port %q", port)
		}
		host = h
	} else if strings.Contains(s, ":") && !strings.HasPrefix(s, "[") {
		// Unbracketed colons that SplitHostPort could not make sense of.
		return errors.New("malformed authority")
	}

	if host == "" {
		return errors.New("host must not be empty")
	}
	if strings.ContainsAny(host, "/?#@\\ ") {
		return fmt.Errorf("invalid character in host %q", host)
	}
	return nil
}
