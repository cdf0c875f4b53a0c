package pipeline

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
)

// RowLabel labels the single row of extracted values.
const RowLabel = "Extracted Text"

// Output formats.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatCSV   = "csv"
	FormatText  = "text"
)

// Formats lists the supported output formats.
var Formats = []string{FormatTable, FormatJSON, FormatCSV, FormatText}

// ValidFormat reports whether f is a supported output format.
func ValidFormat(f string) bool {
	for _, v := range Formats {
		if v == f {
			return true
		}
	}
	return false
}

// Render formats res in the named format.
func Render(res *Result, format string) (string, error) {
	switch strings.ToLower(format) {
	case FormatTable, "":
		return ToTable(res)
	case FormatJSON:
		return ToJSON(res)
	case FormatCSV:
		return ToCSV(res)
	case FormatText:
		return ToPlainText(res)
	}
	return "", fmt.Errorf("unsupported format: %s", format)
}

// ToJSON serializes a result to pretty JSON.
func ToJSON(res *Result) (string, error) {
	if res == nil {
		return "", errors.New("nil result")
	}
	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ToTable renders the result as one labelled row with a column per field.
func ToTable(res *Result) (string, error) {
	if res == nil {
		return "", errors.New("nil result")
	}
	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	header := make([]string, 0, len(res.Fields)+1)
	row := make([]string, 0, len(res.Fields)+1)
	header = append(header, "")
	row = append(row, RowLabel)
	for _, f := range res.Fields {
		header = append(header, f.Field)
		row = append(row, singleLine(f.Text))
	}
	_, _ = fmt.Fprintln(tw, strings.Join(header, "\t"))
	_, _ = fmt.Fprintln(tw, strings.Join(row, "\t"))
	if err := tw.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ToCSV renders the result as a header of field names and one data row.
func ToCSV(res *Result) (string, error) {
	if res == nil {
		return "", errors.New("nil result")
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := []string{""}
	row := []string{RowLabel}
	for _, f := range res.Fields {
		header = append(header, f.Field)
		row = append(row, f.Text)
	}
	_ = w.Write(header)
	_ = w.Write(row)
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ToPlainText renders one "Field: text" line per field followed by warnings.
func ToPlainText(res *Result) (string, error) {
	if res == nil {
		return "", errors.New("nil result")
	}
	lines := make([]string, 0, len(res.Fields)+len(res.Warnings))
	for _, f := range res.Fields {
		lines = append(lines, fmt.Sprintf("%s: %s", f.Field, singleLine(f.Text)))
	}
	for _, w := range res.Warnings {
		lines = append(lines, "warning: "+w.Message)
	}
	return strings.Join(lines, "\n"), nil
}

func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
