package nl2sql

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
)

// Data dictionary CSV header columns.
const (
	dictColumnHeader   = "Column Header"
	dictBusinessHeader = "Business Header"
	dictDefinition     = "Definition"
	dictExample        = "Example"
)

const dictionaryNotFound = "Data dictionary file not found. Proceeding without it."

// DescribeDictionary renders the data dictionary at path as prompt text.
// It never fails: a missing or unreadable file yields a notice instead.
func DescribeDictionary(path string) string {
	desc, err := readDictionary(path)
	if errors.Is(err, fs.ErrNotExist) {
		return dictionaryNotFound
	}
	if err != nil {
		return fmt.Sprintf("Error reading data dictionary: %v", err)
	}
	return desc
}

func readDictionary(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return "", fmt.Errorf("read header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, col := range []string{dictColumnHeader, dictBusinessHeader, dictDefinition, dictExample} {
		if _, ok := idx[col]; !ok {
			return "", fmt.Errorf("missing column %q", col)
		}
	}

	var b strings.Builder
	b.WriteString("This is the data dictionary. It explains the columns in the database tables:\n")
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		field := func(name string) string {
			if i := idx[name]; i < len(rec) {
				return strings.TrimSpace(rec[i])
			}
			return ""
		}
		fmt.Fprintf(&b, "- Column '%s' (also called '%s'): %s. Example: %s\n",
			field(dictColumnHeader), field(dictBusinessHeader), field(dictDefinition), field(dictExample))
	}
	return b.String(), nil
}
