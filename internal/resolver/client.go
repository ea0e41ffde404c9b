package resolver

import (
	"context"
	"log"
	"net"
	"net/http"
	"net/url"
	"time"

	_ "github.com/bdandy/go-socks4"
	"golang.org/x/net/proxy"
)

// newHTTPClient builds the HTTP client used for metadata requests. An empty
// proxyStr means a direct connection. Supported proxy schemes: http, https,
// socks5, socks4.
func newHTTPClient(proxyStr string) *http.Client {
	base := &http.Client{Timeout: 15 * time.Second}
	if proxyStr == "" {
		return base
	}

	proxyURL, err := url.Parse(proxyStr)
	if err != nil {
		log.Printf("[ERR] [Resolver] Invalid proxy %q, using direct connection: %v", proxyStr, err)
		return base
	}

	var transport *http.Transport

	switch proxyURL.Scheme {
	case "http", "https":
		transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	case "socks5", "socks4":
		dialer, err := proxy.FromURL(proxyURL, &net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 10 * time.Second,
		})
		if err != nil {
			log.Printf("[ERR] [Resolver] %s dialer error, using direct connection: %v", proxyURL.Scheme, err)
			return base
		}
		transport = &http.Transport{
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			},
		}
	default:
		log.Printf("[ERR] [Resolver] Unsupported proxy scheme %q, using direct connection", proxyURL.Scheme)
		return base
	}

	log.Printf("[Resolver] Using %s proxy: %s", proxyURL.Scheme, proxyURL.Host)
	base.Transport = transport
	return base
}
