package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/argusscan/argus/internal/logging"
	"github.com/argusscan/argus/internal/webclient"
)

// openAPIDoc is the subset of the PostgREST OpenAPI description we read.
type openAPIDoc struct {
	Paths       map[string]json.RawMessage `json:"paths"`
	Definitions map[string]struct {
		Properties map[string]struct {
			Type   string `json:"type"`
			Format string `json:"format"`
		} `json:"properties"`
		Required []string `json:"required"`
	} `json:"definitions"`
}

// DiscoverSchema fetches the project's self-describing REST API and returns
// the exposed tables with best-effort column metadata. RPC paths are not
// tables and are skipped. A table whose definition carries no properties
// gets a single placeholder column rather than failing the table.
func (c *Client) DiscoverSchema(ctx context.Context, endpoint, apiKey string) ([]TableSchema, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.SchemaTimeout)
	defer cancel()

	req := &webclient.Request{
		Method:  "GET",
		URL:     strings.TrimRight(endpoint, "/") + "/rest/v1/",
		Headers: restHeaders(apiKey, ""),
	}

	resp, err := c.wc.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("schema fetch: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("schema fetch: unexpected status %d", resp.StatusCode)
	}

	var doc openAPIDoc
	if err := json.Unmarshal(resp.Body, &doc); err != nil {
		return nil, fmt.Errorf("schema parse: %w", err)
	}

	var tables []TableSchema
	for path := range doc.Paths {
		name := strings.TrimPrefix(path, "/")
		if name == "" || strings.HasPrefix(name, "rpc/") {
			continue
		}
		tables = append(tables, TableSchema{
			Name:    name,
			Columns: c.columnsFor(&doc, name),
		})
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].Name < tables[j].Name })

	c.logger.Info("discovered schema",
		logging.Field{Key: "endpoint", Value: endpoint},
		logging.Field{Key: "tables", Value: len(tables)})
	return tables, nil
}

func (c *Client) columnsFor(doc *openAPIDoc, table string) []Column {
	def, ok := doc.Definitions[table]
	if !ok || len(def.Properties) == 0 {
		return []Column{{Name: "unknown", Type: "unknown", Nullable: true}}
	}

	required := make(map[string]struct{}, len(def.Required))
	for _, r := range def.Required {
		required[r] = struct{}{}
	}

	cols := make([]Column, 0, len(def.Properties))
	for name, prop := range def.Properties {
		colType := prop.Format
		if colType == "" {
			colType = prop.Type
		}
		if colType == "" {
			colType = "unknown"
		}
		_, req := required[name]
		cols = append(cols, Column{Name: name, Type: colType, Nullable: !req})
	}
	sort.Slice(cols, func(i, j int) bool { return cols[i].Name < cols[j].Name })
	return cols
}

// restHeaders builds the header set PostgREST expects. bearer overrides the
// anon key in the Authorization header for authenticated-mode probing.
func restHeaders(apiKey, bearer string) map[string][]string {
	if bearer == "" {
		bearer = apiKey
	}
	return map[string][]string{
		"Apikey":        {apiKey},
		"Authorization": {"Bearer " + bearer},
		"Accept":        {"application/json"},
	}
}
