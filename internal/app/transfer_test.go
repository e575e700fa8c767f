package app

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/quoteboard/internal/domain"
)

func decode(t *testing.T, s string) any {
	t.Helper()

	var v any
	require.NoError(t, json.Unmarshal([]byte(s), &v))

	return v
}

func TestImportQuotes_MixedItems(t *testing.T) {
	ctx := context.Background()
	f := newEmptyStore(t)

	n, err := f.store.ImportQuotes(ctx, decode(t, `[
		{"text":"Q1","category":"c1"},
		{"bad":1},
		{"text":"Q2","category":"c2"}
	]`))

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"Q1", "Q2"}, texts(f.store.ListQuotes("")))
	assert.Len(t, f.storedQuotes(t), 2)
}

func TestImportQuotes_FiltersMalformedItems(t *testing.T) {
	ctx := context.Background()
	f := newEmptyStore(t)

	n, err := f.store.ImportQuotes(ctx, decode(t, `[
		"just a string",
		42,
		null,
		{"text":"","category":"c"},
		{"text":"t","category":"   "},
		{"text":7,"category":"c"},
		{"text":"t"},
		{"text":"kept","category":"c"}
	]`))

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"kept"}, texts(f.store.ListQuotes("")))
}

func TestImportQuotes_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		input any
	}{
		{name: "object", input: map[string]any{"text": "a", "category": "b"}},
		{name: "string", input: "quotes"},
		{name: "nil", input: nil},
		{name: "empty array", input: []any{}},
		{name: "no valid items", input: []any{map[string]any{"bad": 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newEmptyStore(t, domain.Quote{ID: "1", Text: "a", Category: "c"})

			n, err := f.store.ImportQuotes(context.Background(), tt.input)

			require.Error(t, err)
			assert.True(t, domain.IsValidation(err))
			assert.Zero(t, n)
			assert.Equal(t, 1, f.store.Len())
		})
	}
}

func TestImportQuotes_Identity(t *testing.T) {
	ctx := context.Background()
	f := newEmptyStore(t, domain.Quote{ID: "local-taken", Text: "a", Category: "c", UpdatedAt: t0})

	_, err := f.store.ImportQuotes(ctx, decode(t, `[
		{"id":"local-keep","text":"kept","category":"c","updatedAt":"2025-05-05T05:05:05Z"},
		{"id":"local-taken","text":"dup","category":"c","updatedAt":"2025-05-05T05:05:05Z"},
		{"id":"local-nostamp","text":"nostamp","category":"c"},
		{"id":"local-badstamp","text":"badstamp","category":"c","updatedAt":"soon"}
	]`))
	require.NoError(t, err)

	got := f.store.ListQuotes("")
	require.Len(t, got, 5)

	assert.Equal(t, "local-keep", got[1].ID)
	assert.Equal(t, time.Date(2025, 5, 5, 5, 5, 5, 0, time.UTC), got[1].UpdatedAt)

	seen := map[string]bool{}
	for _, q := range got {
		assert.False(t, seen[q.ID], "duplicate id %s", q.ID)
		seen[q.ID] = true
	}

	for _, q := range got[2:] {
		assert.Equal(t, t0, q.UpdatedAt, q.Text)
	}
}

func TestImportQuotes_AppendsWithoutDedupe(t *testing.T) {
	ctx := context.Background()
	f := newEmptyStore(t, domain.Quote{ID: "1", Text: "same", Category: "c"})

	n, err := f.store.ImportQuotes(ctx, decode(t, `[{"text":"same","category":"c"}]`))

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"same", "same"}, texts(f.store.ListQuotes("")))
}

func TestImportJSON_Malformed(t *testing.T) {
	f := newEmptyStore(t)

	for _, input := range []string{`[{"text":`, ``, `[] []`} {
		_, err := f.store.ImportJSON(context.Background(), []byte(input))

		require.Error(t, err, input)
		assert.True(t, domain.IsParse(err), input)
	}
}

func TestExportQuotes_Format(t *testing.T) {
	f := newEmptyStore(t,
		domain.Quote{ID: "local-1", Text: "a", Category: "c", UpdatedAt: t0},
	)

	data, err := f.store.ExportQuotes()

	require.NoError(t, err)
	want := `[
  {
    "id": "local-1",
    "text": "a",
    "category": "c",
    "updatedAt": "2026-03-01T12:00:00Z"
  }
]`
	assert.Equal(t, want, string(data))
}

func TestExportImport_RoundTrip(t *testing.T) {
	ctx := context.Background()
	source := newFixture(t)
	require.NoError(t, source.store.Initialize(ctx))
	_, err := source.store.AddQuote(ctx, "Extra", "misc")
	require.NoError(t, err)

	data, err := source.store.ExportQuotes()
	require.NoError(t, err)

	target := newEmptyStore(t)
	n, err := target.store.ImportJSON(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, source.store.Len(), n)

	type pair struct{ Text, Category string }
	pairs := func(qs []domain.Quote) []pair {
		out := make([]pair, len(qs))
		for i, q := range qs {
			out[i] = pair{q.Text, q.Category}
		}

		return out
	}

	if diff := cmp.Diff(pairs(source.store.ListQuotes("")), pairs(target.store.ListQuotes(""))); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}
