package httpclient

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"time"

	"golang.org/x/net/proxy"
	"golang.org/x/net/publicsuffix"
)

// DefaultMaxRedirects is the redirect limit when Options.MaxRedirects is zero.
const DefaultMaxRedirects = 10

// checkProxyTimeout bounds the SOCKS5 greeting performed by CheckProxy.
const checkProxyTimeout = 2 * time.Second

// Options configures the HTTP client shared by every domain of a crawl.
type Options struct {
	// Timeout bounds each request, including reading the body.
	Timeout time.Duration

	// ProxyAddress routes all connections through a SOCKS5 proxy ("host:port").
	// Empty means direct connections.
	ProxyAddress string

	// ProxyUser and ProxyPassword authenticate with the SOCKS5 proxy.
	ProxyUser     string
	ProxyPassword string

	// DisableCookies turns off the cookie jar.
	DisableCookies bool

	// Headers are added to every request that does not set them itself.
	Headers map[string]string

	// MaxRedirects limits redirect chains. Zero means DefaultMaxRedirects.
	MaxRedirects int
}

// New builds an HTTP client from opts.
//
// Design decisions:
//   - Cookies go through a jar scoped by the public suffix list, so one site
//     cannot set cookies for a whole TLD
//   - Redirect chains are capped to stop loops between two pages
//   - Idle connections per host are kept low; politeness limits mean few
//     parallel connections to one host anyway
func New(opts Options) (*http.Client, error) {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	if opts.ProxyAddress != "" {
		if !IsValidProxyAddress(opts.ProxyAddress) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidProxyAddress, opts.ProxyAddress)
		}
		var auth *proxy.Auth
		if opts.ProxyUser != "" {
			auth = &proxy.Auth{User: opts.ProxyUser, Password: opts.ProxyPassword}
		}
		dialer, err := proxy.SOCKS5("tcp", opts.ProxyAddress, auth, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		transport.DialContext = dialContext(dialer)
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   opts.Timeout,
	}

	if len(opts.Headers) > 0 {
		client.Transport = &headerTransport{base: transport, headers: opts.Headers}
	}

	if !opts.DisableCookies {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("failed to create cookie jar: %w", err)
		}
		client.Jar = jar
	}

	maxRedirects := opts.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = DefaultMaxRedirects
	}
	client.CheckRedirect = func(_ *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("%w after %d hops", ErrTooManyRedirects, len(via))
		}
		return nil
	}

	return client, nil
}

// dialContext adapts a proxy dialer to http.Transport.DialContext. The
// SOCKS5 dialer of x/net supports contexts directly; other dialers are
// raced against ctx.
func dialContext(d proxy.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	if cd, ok := d.(proxy.ContextDialer); ok {
		return cd.DialContext
	}
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		type result struct {
			conn net.Conn
			err  error
		}
		ch := make(chan result, 1)
		go func() {
			conn, err := d.Dial(network, addr)
			ch <- result{conn, err}
		}()
		select {
		case r := <-ch:
			return r.conn, r.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// IsValidProxyAddress reports whether address is "host:port" with a
// non-empty host and a port in 1-65535.
func IsValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	return err == nil && n >= 1 && n <= 65535
}

// CheckProxy performs a SOCKS5 greeting with the proxy at address and
// reports whether it answers as a SOCKS5 server accepting the offered
// authentication method. It sends no CONNECT request.
func CheckProxy(ctx context.Context, address string, withAuth bool) error {
	ctx, cancel := context.WithTimeout(ctx, checkProxyTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrProxyUnreachable, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return fmt.Errorf("%w: %w", ErrProxyUnreachable, err)
		}
	}

	const (
		socks5Version  = 0x05
		authNone       = 0x00
		authUserPass   = 0x02
		authNoAccepted = 0xFF
	)
	method := byte(authNone)
	if withAuth {
		method = authUserPass
	}
	if _, err := conn.Write([]byte{socks5Version, 0x01, method}); err != nil {
		return fmt.Errorf("%w: %w", ErrProxyUnreachable, err)
	}

	resp := make([]byte, 2)
	if _, err := io.ReadFull(conn, resp); err != nil {
		return fmt.Errorf("%w: %w", ErrNotSOCKS5, err)
	}
	if resp[0] != socks5Version || resp[1] == authNoAccepted || resp[1] != method {
		return ErrNotSOCKS5
	}
	return nil
}

// headerTransport adds fixed headers to every request that lacks them.
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

// RoundTrip implements http.RoundTripper.
func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	for k, v := range t.headers {
		if clone.Header.Get(k) == "" {
			clone.Header.Set(k, v)
		}
	}
	return t.base.RoundTrip(clone)
}
