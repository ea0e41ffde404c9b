package resolver

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
)

var (
	videoPattern    = regexp.MustCompile(`"url":"/watch\?v=([a-zA-Z0-9_-]+)(?:\\u0026list=([a-zA-Z0-9_-]+))?[^"]*`)
	ErrNoVideoMatch = errors.New("no video found for the given title")
)

// searcher scrapes the first watch URL out of a YouTube results page. Good
// enough for "play <title>"; anything heavier belongs in a real search API.
type searcher struct {
	baseURL string
	client  *http.Client
}

func newSearcher(client *http.Client) *searcher {
	return &searcher{
		baseURL: "https://www.youtube.com",
		client:  client,
	}
}

func (s *searcher) FirstVideoURL(query string) (string, error) {
	searchURL := fmt.Sprintf("%s/results?search_query=%s", s.baseURL, url.QueryEscape(query))

	resp, err := s.client.Get(searchURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("YouTube search failed with status code %v", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	matches := videoPattern.FindStringSubmatch(string(body))
	if len(matches) > 1 {
		return fmt.Sprintf("%s/watch?v=%s", s.baseURL, matches[1]), nil
	}

	return "", ErrNoVideoMatch
}
