package domain

import (
	"strings"
	"time"
)

// MergeResult counts what a merge did to the local collection.
type MergeResult struct {
	Added     int
	Updated   int
	Conflicts int
}

// Changed returns the number of quotes inserted or overwritten.
func (r MergeResult) Changed() int {
	return r.Added + r.Updated
}

// FromRemote maps remote records to quotes stamped with the sync time.
// Records without an id or title cannot form a valid quote and are skipped.
func FromRemote(records []RemoteRecord, at time.Time) []Quote {
	quotes := make([]Quote, 0, len(records))

	for _, r := range records {
		id := strings.TrimSpace(r.ID)
		title := strings.TrimSpace(r.Title)
		if id == "" || title == "" {
			continue
		}

		quotes = append(quotes, Quote{
			ID:        RemoteQuoteID(id),
			Text:      title,
			Category:  RemoteCategory,
			UpdatedAt: at.UTC(),
		})
	}

	return quotes
}

// Merge reconciles incoming quotes into local using last-write-wins.
//
// An unknown id is appended. A known id is overwritten in place only when the
// incoming UpdatedAt is strictly after the local one; equal or older incoming
// versions leave the local quote untouched and are not counted.
// The local slice is not modified; the merged collection is returned.
func Merge(local, incoming []Quote) ([]Quote, MergeResult) {
	merged := make([]Quote, len(local), len(local)+len(incoming))
	copy(merged, local)

	index := make(map[string]int, len(merged))
	for i, q := range merged {
		index[q.ID] = i
	}

	var result MergeResult

	for _, in := range incoming {
		i, known := index[in.ID]
		if !known {
			index[in.ID] = len(merged)
			merged = append(merged, in)
			result.Added++

			continue
		}

		if !in.UpdatedAt.After(merged[i].UpdatedAt) {
			continue
		}

		merged[i].Text = in.Text
		merged[i].Category = in.Category
		merged[i].UpdatedAt = in.UpdatedAt
		result.Updated++
		result.Conflicts++
	}

	return merged, result
}
