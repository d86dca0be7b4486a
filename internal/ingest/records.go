// Package ingest accepts uploaded delimited text, turns it into bounded
// batches of keyed records and hands them to a storage backend.
package ingest

// Record is one data row keyed by (deduplicated) header name.
type Record map[string]string

// DedupeHeaders returns headers with repeated names removed.
// The first occurrence wins and the original order is kept.
func DedupeHeaders(headers []string) []string {
	seen := make(map[string]struct{}, len(headers))
	out := make([]string, 0, len(headers))
	for _, h := range headers {
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	return out
}

// ToRecords zips each row with headers. Missing trailing fields become empty
// strings and fields beyond the header count are dropped. When a header name
// repeats, the value at its first position is used.
func ToRecords(headers []string, rows [][]string) []Record {
	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		rec := make(Record, len(headers))
		for i, h := range headers {
			if _, ok := rec[h]; ok {
				continue
			}
			if i < len(row) {
				rec[h] = row[i]
			} else {
				rec[h] = ""
			}
		}
		out = append(out, rec)
	}
	return out
}
