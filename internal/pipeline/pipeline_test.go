package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ksred/insider-api/internal/database"
	"github.com/ksred/insider-api/internal/edgar"
	"github.com/ksred/insider-api/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// stubFiling is one filing served by the fake registry. A zero updated time
// means "filed yesterday".
type stubFiling struct {
	accession string
	doc       string
	updated   time.Time
}

// edgarStub fakes the registry endpoints the client touches: the bulk ticker
// file, the atom index feed, filing landing pages and the documents behind
// them. It counts document-path hits so tests can assert dedup gating, and
// records index-feed queries so tests can assert request shaping.
type edgarStub struct {
	mu          sync.Mutex
	filings     []stubFiling
	hits        map[string]int
	feedQueries []url.Values
}

func (s *edgarStub) countHit(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hits == nil {
		s.hits = make(map[string]int)
	}
	s.hits[path]++
}

func (s *edgarStub) hitCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

func (s *edgarStub) lastFeedQuery() url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.feedQueries) == 0 {
		return nil
	}
	return s.feedQueries[len(s.feedQueries)-1]
}

func (s *edgarStub) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.countHit(r.URL.Path)

		switch {
		case r.URL.Path == "/files/company_tickers.json":
			fmt.Fprint(w, `{"0":{"cik_str":320193,"ticker":"AAPL","title":"Apple Inc."}}`)

		case r.URL.Path == "/cgi-bin/browse-edgar":
			s.mu.Lock()
			s.feedQueries = append(s.feedQueries, r.URL.Query())
			s.mu.Unlock()
			fmt.Fprint(w, `<?xml version="1.0"?><feed xmlns="http://www.w3.org/2005/Atom">`)
			for _, f := range s.filings {
				updated := f.updated
				if updated.IsZero() {
					updated = time.Now().Add(-24 * time.Hour)
				}
				fmt.Fprintf(w, `<entry><title>4 - Insider</title><link href="http://%s/filings/%s-index.htm"/><updated>%s</updated></entry>`,
					r.Host, f.accession, updated.Format(time.RFC3339))
			}
			fmt.Fprint(w, `</feed>`)

		default:
			for _, f := range s.filings {
				switch r.URL.Path {
				case "/filings/" + f.accession + "-index.htm":
					fmt.Fprintf(w, `<html><body>
<a href="/filings/%s/xslF345X05/form4.xml">styled</a>
<a href="/filings/%s/form4.xml">raw</a>
</body></html>`, f.accession, f.accession)
					return
				case "/filings/" + f.accession + "/form4.xml":
					fmt.Fprint(w, f.doc)
					return
				}
			}
			http.NotFound(w, r)
		}
	})
}

func form4XML(ownerName, txDate, code, acqDisp, shares, price string) string {
	return fmt.Sprintf(`<?xml version="1.0"?>
<ownershipDocument>
  <issuer>
    <issuerCik>0000320193</issuerCik>
    <issuerName>Apple Inc.</issuerName>
    <issuerTradingSymbol>AAPL</issuerTradingSymbol>
  </issuer>
  <reportingOwner>
    <reportingOwnerId>
      <rptOwnerCik>0001214156</rptOwnerCik>
      <rptOwnerName>%s</rptOwnerName>
    </reportingOwnerId>
    <reportingOwnerRelationship>
      <isOfficer>1</isOfficer>
      <officerTitle>CEO</officerTitle>
    </reportingOwnerRelationship>
  </reportingOwner>
  <nonDerivativeTable>
    <nonDerivativeTransaction>
      <securityTitle><value>Common Stock</value></securityTitle>
      <transactionDate><value>%s</value></transactionDate>
      <transactionCoding><transactionCode>%s</transactionCode></transactionCoding>
      <transactionAmounts>
        <transactionShares><value>%s</value></transactionShares>
        <transactionPricePerShare><value>%s</value></transactionPricePerShare>
        <transactionAcquiredDisposedCode><value>%s</value></transactionAcquiredDisposedCode>
      </transactionAmounts>
      <postTransactionAmounts>
        <sharesOwnedFollowingTransaction><value>90000</value></sharesOwnedFollowingTransaction>
      </postTransactionAmounts>
      <ownershipNature>
        <directOrIndirectOwnership><value>D</value></directOrIndirectOwnership>
      </ownershipNature>
    </nonDerivativeTransaction>
  </nonDerivativeTable>
</ownershipDocument>`, ownerName, txDate, code, shares, price, acqDisp)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := database.NewDatabase(dsn)
	require.NoError(t, err)
	return db
}

func newTestService(t *testing.T, stub *edgarStub) *Service {
	t.Helper()
	server := httptest.NewServer(stub.handler())
	t.Cleanup(server.Close)

	client, err := edgar.NewClient("Test Suite test@example.com", edgar.NewLimiter(1000, time.Second))
	require.NoError(t, err)
	client.BaseURL = server.URL

	return NewService(newTestDB(t), client, edgar.NewParser(edgar.NumericZeroOnError))
}

func TestPipelineEndToEnd(t *testing.T) {
	stub := &edgarStub{filings: []stubFiling{
		{accession: "0000320193-24-000011", doc: form4XML("COOK TIMOTHY D", "2024-02-01", "P", "A", "1000", "25.50")},
		{accession: "0000320193-24-000012", doc: form4XML("COOK TIMOTHY D", "2024-02-05", "S", "D", "400", "30")},
	}}
	service := newTestService(t, stub)

	summary, err := service.Run(context.Background(), types.ScrapeRequest{Tickers: []string{"AAPL"}})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.FilingsFound)
	assert.Equal(t, 2, summary.FilingsProcessed)
	assert.Equal(t, 2, summary.TradesCreated)
	require.Len(t, summary.Companies, 1)
	assert.Empty(t, summary.Companies[0].Error)

	company, err := service.db.GetCompanyByTicker("AAPL")
	require.NoError(t, err)
	require.NotNil(t, company)
	assert.Equal(t, "0000320193", company.CIK)
	assert.Equal(t, "Apple Inc.", company.Name)

	trades, err := service.db.GetTradesByCompany(company.ID, 0)
	require.NoError(t, err)
	require.Len(t, trades, 2)

	// Newest first: the SELL from Feb 5, then the BUY from Feb 1.
	assert.Equal(t, edgar.TxSell, trades[0].TransactionType)
	assert.Equal(t, edgar.TxBuy, trades[1].TransactionType)
	assert.Equal(t, 1000.0, trades[1].Shares)
	assert.Equal(t, 25.50, trades[1].PricePerShare)
	assert.Equal(t, 25500.0, trades[1].TotalValue)
	assert.Equal(t, edgar.OwnershipDirect, trades[1].OwnershipType)
	assert.Contains(t, trades[1].FilingURL, "0000320193-24-000011")
}

func TestPipelineIdempotence(t *testing.T) {
	stub := &edgarStub{filings: []stubFiling{
		{accession: "0000320193-24-000021", doc: form4XML("COOK TIMOTHY D", "2024-03-01", "P", "A", "100", "10")},
	}}
	service := newTestService(t, stub)
	ctx := context.Background()

	first, err := service.Run(ctx, types.ScrapeRequest{Tickers: []string{"AAPL"}})
	require.NoError(t, err)
	assert.Equal(t, 1, first.FilingsProcessed)
	assert.Equal(t, 1, first.TradesCreated)

	second, err := service.Run(ctx, types.ScrapeRequest{Tickers: []string{"AAPL"}})
	require.NoError(t, err)
	assert.Equal(t, 1, second.FilingsFound)
	assert.Zero(t, second.FilingsProcessed)
	assert.Zero(t, second.TradesCreated)

	// The dedup check gates before the fetch: neither the landing page nor
	// the document may be requested again on the second run.
	assert.Equal(t, 1, stub.hitCount("/filings/0000320193-24-000021-index.htm"))
	assert.Equal(t, 1, stub.hitCount("/filings/0000320193-24-000021/form4.xml"))

	company, err := service.db.GetCompanyByTicker("AAPL")
	require.NoError(t, err)
	trades, err := service.db.GetTradesByCompany(company.ID, 0)
	require.NoError(t, err)
	assert.Len(t, trades, 1)
}

func TestPipelinePartialFailureIsolation(t *testing.T) {
	stub := &edgarStub{filings: []stubFiling{
		{accession: "0000320193-24-000031", doc: form4XML("COOK TIMOTHY D", "2024-04-01", "P", "A", "100", "10")},
		{accession: "0000320193-24-000032", doc: "this is not a filing document"},
		{accession: "0000320193-24-000033", doc: form4XML("COOK TIMOTHY D", "2024-04-03", "S", "D", "200", "12")},
	}}
	service := newTestService(t, stub)
	ctx := context.Background()

	summary, err := service.Run(ctx, types.ScrapeRequest{Tickers: []string{"AAPL"}})
	require.NoError(t, err)

	assert.Equal(t, 3, summary.FilingsFound)
	assert.Equal(t, 2, summary.FilingsProcessed)
	assert.Equal(t, 2, summary.TradesCreated)
	assert.Empty(t, summary.Companies[0].Error, "a per-filing parse failure is not a company failure")

	// The broken filing stays unmarked and is retried on the next run.
	processed, err := service.db.IsFilingProcessed("0000320193-24-000032")
	require.NoError(t, err)
	assert.False(t, processed)

	service.Run(ctx, types.ScrapeRequest{Tickers: []string{"AAPL"}})
	assert.Equal(t, 2, stub.hitCount("/filings/0000320193-24-000032-index.htm"))
	assert.Equal(t, 1, stub.hitCount("/filings/0000320193-24-000031-index.htm"))
}

func TestPipelineDuplicateTradeAcrossFilings(t *testing.T) {
	// The same transaction reported in two filings (overlapping scrape
	// windows, amended filings) must produce a single trade row.
	doc := form4XML("COOK TIMOTHY D", "2024-05-01", "P", "A", "300", "20")
	stub := &edgarStub{filings: []stubFiling{
		{accession: "0000320193-24-000041", doc: doc},
		{accession: "0000320193-24-000042", doc: doc},
	}}
	service := newTestService(t, stub)

	summary, err := service.Run(context.Background(), types.ScrapeRequest{Tickers: []string{"AAPL"}})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.FilingsProcessed)
	assert.Equal(t, 1, summary.TradesCreated)

	company, err := service.db.GetCompanyByTicker("AAPL")
	require.NoError(t, err)
	trades, err := service.db.GetTradesByCompany(company.ID, 0)
	require.NoError(t, err)
	assert.Len(t, trades, 1)
}

func TestPipelineUnknownTicker(t *testing.T) {
	stub := &edgarStub{}
	service := newTestService(t, stub)

	summary, err := service.Run(context.Background(), types.ScrapeRequest{Tickers: []string{"ZZZZ"}})
	assert.ErrorIs(t, err, ErrAllCompaniesFailed)
	require.Len(t, summary.Companies, 1)
	assert.NotEmpty(t, summary.Companies[0].Error)
	assert.Zero(t, summary.FilingsProcessed)
}

func TestPipelineMixedFailureIsPartial(t *testing.T) {
	stub := &edgarStub{filings: []stubFiling{
		{accession: "0000320193-24-000051", doc: form4XML("COOK TIMOTHY D", "2024-06-01", "P", "A", "100", "10")},
	}}
	service := newTestService(t, stub)

	summary, err := service.Run(context.Background(), types.ScrapeRequest{Tickers: []string{"AAPL", "ZZZZ"}})
	require.NoError(t, err, "one healthy company keeps the run successful")

	errs := summary.Errors()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "ZZZZ")
	assert.Equal(t, 1, summary.FilingsProcessed)
}

func TestPipelineHonorsCancellation(t *testing.T) {
	stub := &edgarStub{filings: []stubFiling{
		{accession: "0000320193-24-000061", doc: form4XML("COOK TIMOTHY D", "2024-07-01", "P", "A", "100", "10")},
	}}
	service := newTestService(t, stub)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := service.Run(ctx, types.ScrapeRequest{Tickers: []string{"AAPL"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuildTradesShaping(t *testing.T) {
	parsed := &edgar.ParsedFiling{
		Owner: edgar.ReportingOwner{Name: "COOK TIMOTHY D"},
		Transactions: []edgar.RawTransaction{
			{
				Date:          time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
				Type:          edgar.TxBuy,
				Shares:        1000,
				PricePerShare: 25.50,
				TotalValue:    25500,
				SharesOwned:   90000,
				OwnershipType: edgar.OwnershipDirect,
			},
			{
				Date:         time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC),
				Type:         edgar.TxOther,
				IsDerivative: true,
			},
		},
	}
	company := &types.Company{Ticker: "AAPL"}
	company.ID = 7
	insider := &types.Insider{Name: "COOK TIMOTHY D"}
	insider.ID = 11
	entry := edgar.FilingIndexEntry{
		AccessionNo: "0000320193-24-000011",
		IndexURL:    "https://www.sec.gov/filings/0000320193-24-000011-index.htm",
		FilingDate:  time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC),
	}

	trades := buildTrades(parsed, company, insider, entry)
	require.Len(t, trades, 2, "every surviving transaction becomes exactly one trade")

	assert.Equal(t, uint(7), trades[0].CompanyID)
	assert.Equal(t, uint(11), trades[0].InsiderID)
	assert.Equal(t, entry.FilingDate, trades[0].FilingDate)
	assert.Equal(t, entry.IndexURL, trades[0].FilingURL)
	assert.Equal(t, 25500.0, trades[0].TotalValue)
	assert.True(t, trades[1].IsDerivative)
}
