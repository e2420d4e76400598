package httpclient

import "errors"

var (
	// ErrInvalidProxyAddress is returned when the proxy address is not "host:port".
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")

	// ErrProxyUnreachable is returned when no TCP connection to the proxy can be made.
	ErrProxyUnreachable = errors.New("cannot connect to proxy")

	// ErrNotSOCKS5 is returned when the proxy does not answer the SOCKS5 greeting.
	ErrNotSOCKS5 = errors.New("proxy is not a SOCKS5 proxy")

	// ErrTooManyRedirects is returned when a redirect chain exceeds the limit.
	ErrTooManyRedirects = errors.New("too many redirects")
)
