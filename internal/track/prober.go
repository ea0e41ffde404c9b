package track

import (
	"fmt"
	"net/http"
	"time"
)

// HTTPProber checks stream reachability with a HEAD request. Streaming
// hosts occasionally reject HEAD, so a status at or above 400 falls back
// to a ranged GET before the URL is declared dead.
type HTTPProber struct {
	Client *http.Client
}

func NewHTTPProber(timeout time.Duration) *HTTPProber {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPProber{
		Client: &http.Client{Timeout: timeout},
	}
}

func (p *HTTPProber) Probe(streamURL string) error {
	req, err := http.NewRequest(http.MethodHead, streamURL, nil)
	if err != nil {
		return fmt.Errorf("request creation failed: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := p.Client.Do(req)
	if err == nil && resp.StatusCode < 400 {
		resp.Body.Close()
		return nil
	}
	if resp != nil {
		resp.Body.Close()
	}

	req, err = http.NewRequest(http.MethodGet, streamURL, nil)
	if err != nil {
		return fmt.Errorf("request creation failed: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Range", "bytes=0-0")

	resp, err = p.Client.Do(req)
	if err != nil {
		return fmt.Errorf("GET fallback failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("stream responded with status %d", resp.StatusCode)
	}
	return nil
}
