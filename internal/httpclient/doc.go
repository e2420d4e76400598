// Package httpclient builds the *http.Client shared by every domain of a
// crawl: timeout, public-suffix scoped cookie jar, redirect limit, fixed
// headers and optional SOCKS5 proxying through golang.org/x/net/proxy.
package httpclient
