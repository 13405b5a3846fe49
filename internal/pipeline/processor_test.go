package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/ksred/insider-api/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessorForwardsRequestSettings(t *testing.T) {
	stub := &edgarStub{filings: []stubFiling{
		{accession: "0000320193-24-000091", doc: form4XML("COOK TIMOTHY D", "2024-06-01", "P", "A", "500", "20")},
		{
			accession: "0000320193-24-000092",
			doc:       form4XML("COOK TIMOTHY D", "2024-05-01", "S", "D", "200", "25"),
			updated:   time.Now().Add(-10 * 24 * time.Hour),
		},
	}}
	service := newTestService(t, stub)

	processor := NewProcessor(service, types.ScrapeRequest{
		Tickers:    []string{"AAPL"},
		DaysBack:   5,
		MaxFilings: 7,
	}, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		processor.Start(ctx)
	}()

	require.Eventually(t, func() bool {
		return stub.hitCount("/filings/0000320193-24-000091/form4.xml") > 0
	}, 2*time.Second, 5*time.Millisecond, "scheduler never processed the fresh filing")

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop on cancellation")
	}

	// The configured per-company cap reaches the index feed request.
	query := stub.lastFeedQuery()
	require.NotNil(t, query)
	assert.Equal(t, "7", query.Get("count"))

	// The days-back window holds too: the filing from ten days ago stays
	// outside it and its document is never fetched.
	assert.Zero(t, stub.hitCount("/filings/0000320193-24-000092/form4.xml"))
}

func TestProcessorIdlesWithoutTickers(t *testing.T) {
	stub := &edgarStub{}
	service := newTestService(t, stub)

	processor := NewProcessor(service, types.ScrapeRequest{}, 5*time.Millisecond)

	done := make(chan struct{})
	go func() {
		defer close(done)
		processor.Start(context.Background())
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler should return immediately with no tickers configured")
	}
	assert.Zero(t, stub.hitCount("/cgi-bin/browse-edgar"))
}
