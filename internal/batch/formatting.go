package batch

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MeKo-Tech/cropocr/internal/pipeline"
)

// formatBatchResults formats the batch results in the specified format.
func formatBatchResults(r *Result, format string) (string, error) {
	switch strings.ToLower(format) {
	case pipeline.FormatJSON:
		return formatJSON(r)
	case pipeline.FormatCSV:
		return formatCSV(r)
	case pipeline.FormatText, pipeline.FormatTable, "":
		return formatText(r)
	default:
		return "", fmt.Errorf("unsupported format %q", format)
	}
}

type jsonImage struct {
	File   string           `json:"file"`
	Result *pipeline.Result `json:"result,omitempty"`
	Error  string           `json:"error,omitempty"`
}

// formatJSON formats results as JSON.
func formatJSON(r *Result) (string, error) {
	out := struct {
		Layout string      `json:"layout"`
		Fields []string    `json:"fields"`
		Failed int         `json:"failed"`
		Images []jsonImage `json:"images"`
	}{
		Layout: r.Layout.Name,
		Fields: r.Layout.FieldNames(),
		Failed: r.Failed(),
		Images: make([]jsonImage, len(r.Images)),
	}
	for i, img := range r.Images {
		out.Images[i] = jsonImage{File: img.File, Result: img.Result}
		if img.Err != nil {
			out.Images[i].Error = img.Err.Error()
		}
	}
	bts, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return string(bts) + "\n", nil
}

// formatCSV writes one row per image: the file, one column per field and
// the error, if any. Failed images leave the field columns empty.
func formatCSV(r *Result) (string, error) {
	fields := r.Layout.FieldNames()
	header := append([]string{"file"}, fields...)
	header = append(header, "error")

	var output strings.Builder
	writer := csv.NewWriter(&output)
	if err := writer.Write(header); err != nil {
		return "", err
	}
	for _, img := range r.Images {
		row := make([]string, 0, len(header))
		row = append(row, img.File)
		if img.Result != nil {
			row = append(row, img.Result.Values()...)
		} else {
			row = append(row, make([]string, len(fields))...)
		}
		if img.Err != nil {
			row = append(row, img.Err.Error())
		} else {
			row = append(row, "")
		}
		if err := writer.Write(row); err != nil {
			return "", err
		}
	}
	writer.Flush()
	return output.String(), writer.Error()
}

// formatText writes a "# file" heading followed by the plain text rendering
// of each image.
func formatText(r *Result) (string, error) {
	var output strings.Builder
	for i, img := range r.Images {
		if i > 0 {
			output.WriteString("\n")
		}
		output.WriteString(fmt.Sprintf("# %s\n", img.File))
		if img.Err != nil {
			output.WriteString("error: " + img.Err.Error() + "\n")
			continue
		}
		text, err := pipeline.ToPlainText(img.Result)
		if err != nil {
			return "", err
		}
		output.WriteString(text + "\n")
	}
	return output.String(), nil
}
