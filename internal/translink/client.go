package translink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"
)

const (
	// DefaultBaseURL is the TransLink journey planner API root
	DefaultBaseURL = "https://jp.translink.com.au/api"

	timetablePath = "/stop/timetable/"
	userAgent     = "FavStop departures client (https://github.com/rodonguyen/FavStop)"
)

// Fetch outcomes reported to an Observer
const (
	OutcomeOK             = "ok"
	OutcomeInvalidRequest = "invalid_request"
	OutcomeNetwork        = "network"
	OutcomeHTTP           = "http"
	OutcomeDecoding       = "decoding"
)

// Observer receives one call per finished fetch
type Observer interface {
	ObserveFetch(stopID, outcome string, duration time.Duration)
}

// Client fetches stop timetables from the TransLink API.
// The *http.Client is injected so tests and callers control the transport.
type Client struct {
	baseURL  string
	http     *http.Client
	observer Observer
}

// Option configures a Client
type Option func(*Client)

// WithObserver reports every fetch to o
func WithObserver(o Observer) Option {
	return func(c *Client) {
		c.observer = o
	}
}

// NewClient creates a client for baseURL using httpClient.
// A nil httpClient falls back to NewHTTPClient(0).
func NewClient(baseURL string, httpClient *http.Client, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = NewHTTPClient(0)
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewHTTPClient builds the process-wide HTTP client. A zero timeout leaves
// the transport default in place.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: &userAgentTransport{base: http.DefaultTransport, userAgent: userAgent},
	}
}

// FetchTimetable issues a single GET for stopID. Errors are one of
// *InvalidRequestError, *NetworkError, *HTTPError or *DecodingError.
func (c *Client) FetchTimetable(ctx context.Context, stopID string) (*StopTimetable, error) {
	start := time.Now()

	timetable, err := c.fetchTimetable(ctx, stopID)
	if c.observer != nil {
		c.observer.ObserveFetch(stopID, outcomeOf(err), time.Since(start))
	}
	if err != nil {
		log.Printf("TransLink: failed to fetch timetable for stop %s: %v", stopID, err)
		return nil, err
	}
	return timetable, nil
}

func (c *Client) fetchTimetable(ctx context.Context, stopID string) (*StopTimetable, error) {
	endpoint, err := c.timetableURL(stopID)
	if err != nil {
		return nil, &InvalidRequestError{StopID: stopID, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &InvalidRequestError{StopID: stopID, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{
			StatusCode: resp.StatusCode,
			Message:    strings.ToLower(http.StatusText(resp.StatusCode)),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Err: fmt.Errorf("failed to read response: %w", err)}
	}

	var timetable StopTimetable
	if err := json.Unmarshal(body, &timetable); err != nil {
		return nil, &DecodingError{Message: err.Error(), Err: err}
	}

	return &timetable, nil
}

// timetableURL composes <base>/stop/timetable/<stopID>
func (c *Client) timetableURL(stopID string) (string, error) {
	if stopID == "" {
		return "", errors.New("empty stop id")
	}
	for _, r := range stopID {
		if unicode.IsSpace(r) || unicode.IsControl(r) || strings.ContainsRune("/?#", r) {
			return "", fmt.Errorf("stop id %q contains %q", stopID, r)
		}
	}

	raw := c.baseURL + timetablePath + stopID
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("base url %q is not absolute", c.baseURL)
	}
	return u.String(), nil
}

func outcomeOf(err error) string {
	var (
		invalid  *InvalidRequestError
		network  *NetworkError
		httpErr  *HTTPError
		decoding *DecodingError
	)
	switch {
	case err == nil:
		return OutcomeOK
	case errors.As(err, &invalid):
		return OutcomeInvalidRequest
	case errors.As(err, &network):
		return OutcomeNetwork
	case errors.As(err, &httpErr):
		return OutcomeHTTP
	case errors.As(err, &decoding):
		return OutcomeDecoding
	default:
		return OutcomeNetwork
	}
}

// userAgentTransport stamps every outgoing request with a User-Agent
type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.Header.Set("User-Agent", t.userAgent)
	return t.base.RoundTrip(r)
}
