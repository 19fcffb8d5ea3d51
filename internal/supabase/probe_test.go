package supabase_test

import (
	"context"
	"testing"
	"time"

	"github.com/argusscan/argus/internal/supabase"
	"github.com/argusscan/argus/internal/testutil"
)

const endpoint = "https://abcdefghij.supabase.co"

func probeConfig() supabase.Config {
	return supabase.Config{
		SchemaTimeout:  time.Second,
		ProbeTimeout:   time.Second,
		ProbeBatchSize: 2,
		BatchPause:     time.Millisecond,
		RowLimit:       1,
	}
}

func probeURL(table string) string {
	return endpoint + "/rest/v1/" + table + "?select=*&limit=1"
}

func TestClient_ProbeTables_Classification(t *testing.T) {
	t.Parallel()

	wc := &testutil.DummyWebClient{
		Responses: map[string]testutil.CannedResponse{
			probeURL("users"):  {Status: 200, Body: `[{"id":1,"email":"a@b.c"}]`},
			probeURL("orders"): {Status: 200, Body: `[]`},
			probeURL("logs"):   {Status: 401, Body: `{"message":"JWT required"}`},
			probeURL("broken"): {Status: 500, Body: `oops`},
		},
		FailURLs: map[string]bool{probeURL("flaky"): true},
	}
	client := supabase.NewClient(probeConfig(), wc, &testutil.DummyLogger{})

	in := []supabase.TableSchema{
		{Name: "users"}, {Name: "orders"}, {Name: "logs"}, {Name: "broken"}, {Name: "flaky"},
	}
	out := client.ProbeTables(context.Background(), endpoint, "anonkey", "", in)

	if len(out) != len(in) {
		t.Fatalf("expected %d tables, got %d", len(in), len(out))
	}
	for i := range in {
		if out[i].Name != in[i].Name {
			t.Fatalf("table order changed: got %q at %d, want %q", out[i].Name, i, in[i].Name)
		}
	}

	byName := make(map[string]supabase.TableSchema, len(out))
	for _, tbl := range out {
		byName[tbl.Name] = tbl
	}

	if tbl := byName["users"]; !tbl.IsPublic || tbl.RLSEnabled {
		t.Errorf("rows on anon key should be public: %+v", tbl)
	}
	if tbl := byName["orders"]; tbl.IsPublic || !tbl.RLSEnabled {
		t.Errorf("empty 200 should be protected: %+v", tbl)
	}
	if tbl := byName["logs"]; tbl.IsPublic || !tbl.RLSEnabled {
		t.Errorf("401 should be protected with RLS enabled: %+v", tbl)
	}
	if tbl := byName["broken"]; tbl.IsPublic || tbl.ErrorMessage == "" {
		t.Errorf("unexpected status should be protected with an error message: %+v", tbl)
	}
	if tbl := byName["flaky"]; tbl.IsPublic || tbl.ErrorMessage == "" {
		t.Errorf("transport failure should be protected with an error message: %+v", tbl)
	}

	if n := supabase.PublicCount(out); n != 1 {
		t.Errorf("expected exactly 1 public table, got %d", n)
	}
}

func TestClient_ProbeTables_Deterministic(t *testing.T) {
	t.Parallel()

	wc := &testutil.DummyWebClient{
		Responses: map[string]testutil.CannedResponse{
			probeURL("users"): {Status: 200, Body: `[{"id":1}]`},
			probeURL("logs"):  {Status: 403, Body: `{}`},
		},
	}
	client := supabase.NewClient(probeConfig(), wc, &testutil.DummyLogger{})
	in := []supabase.TableSchema{{Name: "users"}, {Name: "logs"}}

	first := client.ProbeTables(context.Background(), endpoint, "anonkey", "", in)
	second := client.ProbeTables(context.Background(), endpoint, "anonkey", "", in)

	for i := range first {
		if first[i].IsPublic != second[i].IsPublic || first[i].RLSEnabled != second[i].RLSEnabled {
			t.Errorf("probe verdict for %q not deterministic: %+v vs %+v",
				first[i].Name, first[i], second[i])
		}
	}
}

func TestClient_ProbeTables_BearerOverridesAnonKey(t *testing.T) {
	t.Parallel()

	wc := &testutil.DummyWebClient{
		Responses: map[string]testutil.CannedResponse{
			probeURL("users"): {Status: 200, Body: `[]`},
		},
	}
	client := supabase.NewClient(probeConfig(), wc, &testutil.DummyLogger{})

	client.ProbeTables(context.Background(), endpoint, "anonkey", "usertoken",
		[]supabase.TableSchema{{Name: "users"}})

	if len(wc.Requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(wc.Requests))
	}
	h := wc.Requests[0].Headers
	if got := h.Get("Authorization"); got != "Bearer usertoken" {
		t.Errorf("expected user token in Authorization, got %q", got)
	}
	if got := h.Get("Apikey"); got != "anonkey" {
		t.Errorf("expected anon key in Apikey header, got %q", got)
	}
}
