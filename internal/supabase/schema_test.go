package supabase_test

import (
	"context"
	"testing"

	"github.com/argusscan/argus/internal/supabase"
	"github.com/argusscan/argus/internal/testutil"
)

const openAPIFixture = `{
	"paths": {
		"/": {},
		"/users": {},
		"/orders": {},
		"/rpc/recalculate": {}
	},
	"definitions": {
		"users": {
			"properties": {
				"id": {"type": "integer", "format": "bigint"},
				"email": {"type": "string"}
			},
			"required": ["id"]
		}
	}
}`

func TestClient_DiscoverSchema(t *testing.T) {
	t.Parallel()

	wc := &testutil.DummyWebClient{
		Responses: map[string]testutil.CannedResponse{
			endpoint + "/rest/v1/": {Status: 200, Body: openAPIFixture},
		},
	}
	client := supabase.NewClient(probeConfig(), wc, &testutil.DummyLogger{})

	tables, err := client.DiscoverSchema(context.Background(), endpoint, "anonkey")
	if err != nil {
		t.Fatalf("DiscoverSchema: %v", err)
	}

	if len(tables) != 2 {
		t.Fatalf("expected 2 tables (root and rpc paths skipped), got %d: %v", len(tables), tables)
	}
	if tables[0].Name != "orders" || tables[1].Name != "users" {
		t.Errorf("expected sorted tables [orders users], got [%s %s]", tables[0].Name, tables[1].Name)
	}

	// No definition: one placeholder column instead of a failed table.
	orders := tables[0]
	if len(orders.Columns) != 1 || orders.Columns[0].Name != "unknown" {
		t.Errorf("expected placeholder column for orders, got %v", orders.Columns)
	}

	users := tables[1]
	if len(users.Columns) != 2 {
		t.Fatalf("expected 2 columns for users, got %v", users.Columns)
	}
	if users.Columns[0].Name != "email" || !users.Columns[0].Nullable {
		t.Errorf("expected nullable email column first, got %+v", users.Columns[0])
	}
	if users.Columns[1].Name != "id" || users.Columns[1].Type != "bigint" || users.Columns[1].Nullable {
		t.Errorf("expected required bigint id column, got %+v", users.Columns[1])
	}
}

func TestClient_DiscoverSchema_Errors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		canned testutil.CannedResponse
	}{
		{"non-200 status", testutil.CannedResponse{Status: 401, Body: `{}`}},
		{"unparseable body", testutil.CannedResponse{Status: 200, Body: `<html>not json</html>`}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			wc := &testutil.DummyWebClient{
				Responses: map[string]testutil.CannedResponse{
					endpoint + "/rest/v1/": tc.canned,
				},
			}
			client := supabase.NewClient(probeConfig(), wc, &testutil.DummyLogger{})

			if _, err := client.DiscoverSchema(context.Background(), endpoint, "anonkey"); err == nil {
				t.Error("expected error")
			}
		})
	}
}
