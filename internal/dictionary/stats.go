package dictionary

// ComputeHistogram counts records by the lower-cased first byte of Word.
// Words that are empty or start with anything other than an ASCII letter are
// skipped. The function is pure.
func ComputeHistogram(records []Record) Histogram {
	stats := make(Histogram)
	for _, rec := range records {
		if rec.Word == "" {
			continue
		}
		c := rec.Word[0]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
			c += 'a' - 'A'
		default:
			continue
		}
		stats[string(c)]++
	}
	return stats
}
