package types

import (
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// ScrapeRequest is the payload accepted by the scrape and links endpoints.
type ScrapeRequest struct {
	URL string `json:"url"`
}

// LinkCandidate is an article link discovered on a seed page.
type LinkCandidate struct {
	AbsoluteURL string `json:"url"`
}

// PageFetchResult is the outcome of a single fetch: either *Page or *FetchFailure.
type PageFetchResult interface {
	pageFetchResult()
}

// Page represents successfully fetched content.
type Page struct {
	URL             *url.URL
	FinalURL        *url.URL
	HTML            string
	ContentType     string
	StatusCode      int
	Protocol        string
	Headers         http.Header
	FetchedAt       time.Time
	ResponseLatency time.Duration
}

func (*Page) pageFetchResult() {}

// BaseURL returns the URL relative links on the page resolve against.
func (p *Page) BaseURL() *url.URL {
	if p.FinalURL != nil {
		return p.FinalURL
	}
	return p.URL
}

// ErrorKind classifies why a fetch failed.
type ErrorKind string

const (
	ErrorKindTimeout    ErrorKind = "timeout"
	ErrorKindConnection ErrorKind = "connection_error"
	ErrorKindHTTPStatus ErrorKind = "http_status"
	ErrorKindTLS        ErrorKind = "tls_error"
)

// FetchFailure describes a fetch that did not yield a usable page.
type FetchFailure struct {
	URL        string
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (*FetchFailure) pageFetchResult() {}

// Reason renders the machine-readable failure reason, eg. "http_status:404".
func (f *FetchFailure) Reason() string {
	if f.Kind == ErrorKindHTTPStatus {
		return fmt.Sprintf("%s:%d", f.Kind, f.StatusCode)
	}
	return string(f.Kind)
}

func (f *FetchFailure) Error() string {
	if f.Err == nil {
		return f.Reason()
	}
	return f.Reason() + ": " + f.Err.Error()
}

func (f *FetchFailure) Unwrap() error {
	return f.Err
}

// ArticleResult carries either the extracted content or the error for one link.
type ArticleResult struct {
	URL     string  `json:"url"`
	Content *string `json:"content,omitempty"`
	Error   string  `json:"error,omitempty"`
}

// ContentResult builds a successful result. Empty text is still reported as content.
func ContentResult(rawURL, text string) ArticleResult {
	return ArticleResult{URL: rawURL, Content: &text}
}

// ErrorResult builds a failed result.
func ErrorResult(rawURL string, err error) ArticleResult {
	msg := "unknown error"
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return ArticleResult{URL: rawURL, Error: msg}
}

// Failed reports whether the result carries an error.
func (r ArticleResult) Failed() bool {
	return r.Content == nil
}

// ScrapeResponse is the ordered set of results for one seed, in discovery order.
type ScrapeResponse []ArticleResult

// RejectedLink records an anchor dropped during link discovery and why.
type RejectedLink struct {
	Href   string `json:"href"`
	URL    string `json:"url,omitempty"`
	Reason string `json:"reason"`
}

// LinkReport is the link-discovery diagnostic for a seed page.
type LinkReport struct {
	URL        string          `json:"url"`
	FinalURL   string          `json:"final_url"`
	HTMLLength int             `json:"html_length"`
	Links      []LinkCandidate `json:"links"`
	Rejected   []RejectedLink  `json:"rejected"`
}
