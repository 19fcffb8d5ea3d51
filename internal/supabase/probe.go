package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/argusscan/argus/internal/logging"
	"github.com/argusscan/argus/internal/webclient"
)

// ProbeTables issues a bounded unauthenticated read against each table and
// fills in the access-control verdict. Tables are probed in batches of
// cfg.ProbeBatchSize with the rate limiter spacing batches out. One
// table's failure never fails the batch; the table is marked errored and
// the rest proceed.
//
// bearer is empty for anon probing; set it to a user token for
// authenticated-mode analysis.
//
// Classification policy, preserved from the original behavior: an HTTP 200
// with zero rows is reported as protected even though an empty-but-open
// table is indistinguishable from an enforced one. The bias is toward not
// over-reporting exposures; see the package tests for the spelled-out
// policy table.
func (c *Client) ProbeTables(ctx context.Context, endpoint, apiKey, bearer string, tables []TableSchema) []TableSchema {
	out := make([]TableSchema, len(tables))
	copy(out, tables)

	for start := 0; start < len(out); start += c.cfg.ProbeBatchSize {
		if err := c.limiter.Wait(ctx); err != nil {
			// Context gone; mark the remainder as errored rather than dropping them.
			for i := start; i < len(out); i++ {
				out[i].ErrorMessage = "probe canceled: " + err.Error()
			}
			break
		}

		end := start + c.cfg.ProbeBatchSize
		if end > len(out) {
			end = len(out)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				out[i] = c.probeTable(ctx, endpoint, apiKey, bearer, out[i])
			}(i)
		}
		wg.Wait()
	}

	return out
}

func (c *Client) probeTable(ctx context.Context, endpoint, apiKey, bearer string, table TableSchema) TableSchema {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ProbeTimeout)
	defer cancel()

	req := &webclient.Request{
		Method: "GET",
		URL: fmt.Sprintf("%s/rest/v1/%s?select=*&limit=%d",
			strings.TrimRight(endpoint, "/"), table.Name, c.cfg.RowLimit),
		Headers: restHeaders(apiKey, bearer),
	}

	resp, err := c.wc.Do(ctx, req)
	if err != nil {
		c.logger.Warn("table probe failed",
			logging.Field{Key: "table", Value: table.Name},
			logging.Field{Key: "error", Value: err.Error()})
		table.IsPublic = false
		table.RLSEnabled = false
		table.ErrorMessage = err.Error()
		return table
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		var rows []json.RawMessage
		if err := json.Unmarshal(resp.Body, &rows); err != nil {
			table.IsPublic = false
			table.RLSEnabled = false
			table.ErrorMessage = "unparseable probe response"
			return table
		}
		if len(rows) > 0 {
			// Confirmed exposure: data came back on the anon key alone.
			table.IsPublic = true
			table.RLSEnabled = false
			return table
		}
		// Zero rows: treated as protected by policy.
		table.IsPublic = false
		table.RLSEnabled = true
		return table

	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		// Access control demonstrably working.
		table.IsPublic = false
		table.RLSEnabled = true
		return table

	default:
		// Ambiguous: reported as protected-with-caveat, never as exposure.
		table.IsPublic = false
		table.RLSEnabled = false
		table.ErrorMessage = fmt.Sprintf("unexpected status %d", resp.StatusCode)
		return table
	}
}

// PublicCount returns how many tables were confirmed publicly readable.
func PublicCount(tables []TableSchema) int {
	n := 0
	for _, t := range tables {
		if t.IsPublic {
			n++
		}
	}
	return n
}
