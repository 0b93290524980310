package dictionary

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
)

// lineBreaks folds line breaks inside a field into single spaces so every
// record occupies exactly one artifact line.
var lineBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// EncodeRecords renders records in the artifact line format
// "word: pronunciation, definition", newline separated.
func EncodeRecords(records []Record) []byte {
	var buf bytes.Buffer
	for i, rec := range records {
		if i > 0 {
			buf.WriteByte('\n')
		}
		fmt.Fprintf(&buf, "%s: %s, %s",
			lineBreaks.Replace(rec.Word),
			lineBreaks.Replace(rec.Pronunciation),
			lineBreaks.Replace(rec.Definition),
		)
	}
	return buf.Bytes()
}

// ParseRecords reads the artifact line format back. Each line is split on
// the first ':' and then the first ','; values containing those delimiters do
// not round-trip. Lines without ':' are skipped.
func ParseRecords(data []byte) ([]Record, error) {
	var records []Record
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		rec, ok := ParseLine(scanner.Text())
		if ok {
			records = append(records, rec)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan artifact: %w", err)
	}
	return records, nil
}

// ParseLine parses a single artifact line.
func ParseLine(line string) (Record, bool) {
	word, rest, ok := strings.Cut(line, ":")
	if !ok {
		return Record{}, false
	}
	pronunciation, definition, _ := strings.Cut(rest, ",")
	return Record{
		Word:          strings.TrimSpace(word),
		Pronunciation: strings.TrimSpace(pronunciation),
		Definition:    strings.TrimSpace(definition),
	}, true
}
