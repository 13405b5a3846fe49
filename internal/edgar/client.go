package edgar

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"
)

const (
	defaultBaseURL = "https://www.sec.gov"

	// EDGAR caps atom feed pagination at 100 entries per call.
	maxFilingsPerCall = 100

	requestTimeout = 30 * time.Second

	// Styled XSLT renderings of a filing live under an /xsl... path
	// segment. We always want the raw structured document.
	styledPathMarker = "/xsl"
)

var (
	// ErrMissingUserAgent is returned at construction time. EDGAR rejects
	// anonymous clients, so an empty contact string is a configuration
	// error, not something to discover per request.
	ErrMissingUserAgent = errors.New("edgar: user agent with contact info is required")

	// ErrTickerNotFound means the bulk ticker dataset has no entry for the
	// requested symbol.
	ErrTickerNotFound = errors.New("edgar: ticker not found in company dataset")

	// ErrNoDocumentLink means a filing landing page contained no raw XML
	// document link.
	ErrNoDocumentLink = errors.New("edgar: no raw document link on filing index page")

	accessionPattern = regexp.MustCompile(`\d{10}-\d{2}-\d{6}`)
	xmlLinkPattern   = regexp.MustCompile(`(?i)href="([^"]+\.xml)"`)
)

// FetchError wraps a failed registry round-trip. The orchestrator treats
// per-filing instances as "skip and continue".
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("edgar: fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("edgar: fetch %s: status %d", e.URL, e.StatusCode)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Client talks to the SEC EDGAR registry. All round-trips pass through the
// shared Limiter and carry the identifying User-Agent header.
type Client struct {
	// BaseURL is swapped out by tests; everything else should leave it.
	BaseURL string

	httpClient *http.Client
	limiter    *Limiter
	userAgent  string

	mu       sync.Mutex
	cikCache map[string]string
}

// NewClient creates a registry client. userAgent must carry contact info in
// the form EDGAR requires ("Acme Inc admin@acme.com").
func NewClient(userAgent string, limiter *Limiter) (*Client, error) {
	if strings.TrimSpace(userAgent) == "" {
		return nil, ErrMissingUserAgent
	}
	return &Client{
		BaseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: requestTimeout},
		limiter:    limiter,
		userAgent:  userAgent,
	}, nil
}

// get performs one rate-limited round-trip.
func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	if err := c.limiter.Acquire(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	return body, nil
}

// companyTickerEntry is one record in EDGAR's bulk company_tickers.json file,
// which maps every registered ticker to its CIK.
type companyTickerEntry struct {
	CIK    int64  `json:"cik_str"`
	Ticker string `json:"ticker"`
	Title  string `json:"title"`
}

// ResolveCIK looks up the ten-digit zero-padded CIK for a ticker,
// case-insensitively, loading the bulk dataset on first use.
func (c *Client) ResolveCIK(ctx context.Context, ticker string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cikCache == nil {
		body, err := c.get(ctx, c.BaseURL+"/files/company_tickers.json")
		if err != nil {
			return "", err
		}
		var entries map[string]companyTickerEntry
		if err := json.Unmarshal(body, &entries); err != nil {
			return "", fmt.Errorf("edgar: decode company tickers: %w", err)
		}
		c.cikCache = make(map[string]string, len(entries))
		for _, e := range entries {
			c.cikCache[strings.ToUpper(e.Ticker)] = fmt.Sprintf("%010d", e.CIK)
		}
	}

	cik, ok := c.cikCache[strings.ToUpper(strings.TrimSpace(ticker))]
	if !ok {
		return "", ErrTickerNotFound
	}
	return cik, nil
}

type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Title string `xml:"title"`
	Link  struct {
		Href string `xml:"href,attr"`
	} `xml:"link"`
	Updated string `xml:"updated"`
}

// ListRecentFilings queries the Form 4 index feed for a CIK and returns up to
// maxCount entries filed on or after since, newest first.
func (c *Client) ListRecentFilings(ctx context.Context, cik string, since time.Time, maxCount int) ([]FilingIndexEntry, error) {
	if maxCount <= 0 || maxCount > maxFilingsPerCall {
		maxCount = maxFilingsPerCall
	}

	feedURL := fmt.Sprintf(
		"%s/cgi-bin/browse-edgar?action=getcompany&CIK=%s&type=4&dateb=&owner=include&count=%d&output=atom",
		c.BaseURL, url.QueryEscape(cik), maxCount,
	)

	body, err := c.get(ctx, feedURL)
	if err != nil {
		return nil, err
	}

	var feed atomFeed
	if err := xml.Unmarshal(sanitizeXML(body), &feed); err != nil {
		return nil, &FetchError{URL: feedURL, Err: err}
	}

	var entries []FilingIndexEntry
	for _, entry := range feed.Entries {
		accessionNo := accessionPattern.FindString(entry.Link.Href)
		if accessionNo == "" {
			continue
		}
		filedAt, err := time.Parse(time.RFC3339, entry.Updated)
		if err != nil {
			filedAt = time.Time{}
		}
		if !since.IsZero() && !filedAt.IsZero() && filedAt.Before(since) {
			continue
		}
		entries = append(entries, FilingIndexEntry{
			AccessionNo: accessionNo,
			IndexURL:    entry.Link.Href,
			FilingDate:  filedAt,
		})
		if len(entries) >= maxCount {
			break
		}
	}
	return entries, nil
}

// FetchFilingDocument retrieves the raw structured Form 4 document behind a
// filing's landing page. The page links both the raw XML and one or more
// styled renderings; the styled ones are filtered out by their path marker.
func (c *Client) FetchFilingDocument(ctx context.Context, indexURL string) ([]byte, error) {
	page, err := c.get(ctx, indexURL)
	if err != nil {
		return nil, err
	}

	docURL := selectRawDocumentURL(indexURL, string(page))
	if docURL == "" {
		return nil, &FetchError{URL: indexURL, Err: ErrNoDocumentLink}
	}

	return c.get(ctx, docURL)
}

// selectRawDocumentURL scans a landing page for XML links and picks the first
// raw (non-styled) one, resolved against the page URL.
func selectRawDocumentURL(pageURL, page string) string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	for _, match := range xmlLinkPattern.FindAllStringSubmatch(page, -1) {
		href := match[1]
		if strings.Contains(strings.ToLower(href), styledPathMarker) {
			continue
		}
		ref, err := url.Parse(href)
		if err != nil {
			continue
		}
		return base.ResolveReference(ref).String()
	}
	return ""
}
