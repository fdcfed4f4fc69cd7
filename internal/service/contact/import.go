package contact

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/ignite/pulsemail/internal/pkg/logger"
)

// ImportResult summarizes one CSV import.
type ImportResult struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

// importable CSV fields, as accepted in a field mapping.
var importFields = map[string]bool{
	"email":      true,
	"first_name": true,
	"last_name":  true,
	"company":    true,
	"phone":      true,
	"tags":       true,
}

// ImportCSV reads contacts from CSV. The mapping translates CSV header names
// to contact fields; with a nil mapping, headers matching field names (case
// and space insensitive) map themselves. Rows with a missing or invalid
// email, or an email already present for the user, are skipped and counted,
// never aborting the rest of the file.
func (s *Service) ImportCSV(ctx context.Context, userID string, r io.Reader, mapping map[string]string, listID string) (*ImportResult, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	// columns[i] names the contact field column i feeds, or "" to ignore.
	columns := make([]string, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if mapped, ok := mapping[h]; ok {
			key = strings.ToLower(strings.TrimSpace(mapped))
		} else if mapped, ok := mapping[key]; ok {
			key = strings.ToLower(strings.TrimSpace(mapped))
		}
		key = strings.ReplaceAll(key, " ", "_")
		if importFields[key] {
			columns[i] = key
		}
	}

	hasEmail := false
	for _, c := range columns {
		if c == "email" {
			hasEmail = true
			break
		}
	}
	if !hasEmail {
		return nil, fmt.Errorf("no email column found in csv header")
	}

	result := &ImportResult{}
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", line, err))
			continue
		}

		input := CreateInput{ListID: listID}
		for i, value := range record {
			if i >= len(columns) {
				break
			}
			value = strings.TrimSpace(value)
			switch columns[i] {
			case "email":
				input.Email = value
			case "first_name":
				input.FirstName = value
			case "last_name":
				input.LastName = value
			case "company":
				input.Company = value
			case "phone":
				input.Phone = value
			case "tags":
				input.Tags = splitTags(value)
			}
		}

		if _, err := s.Create(ctx, userID, input); err != nil {
			result.Skipped++
			if err != ErrEmailExists {
				result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", line, err))
			}
			continue
		}
		result.Imported++
	}

	logger.Info("csv import finished",
		"user_id", userID, "imported", result.Imported, "skipped", result.Skipped)
	return result, nil
}

// splitTags parses a tag cell, accepting semicolon or pipe separators so the
// cell survives CSV quoting rules.
func splitTags(cell string) []string {
	if cell == "" {
		return nil
	}
	return strings.FieldsFunc(cell, func(r rune) bool {
		return r == ';' || r == '|' || r == ','
	})
}
