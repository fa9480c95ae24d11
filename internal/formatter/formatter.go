// package formatter encodes and decodes the lyrics dataset (CSV) and exports it to other formats (JSON, JSON lines, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/desertthunder/lyx/internal/models"
	"github.com/desertthunder/lyx/internal/shared"
)

const utf8BOM = "\ufeff"

// Export formats
const (
	FormatCSV      = "csv"
	FormatJSON     = "json"
	FormatJSONL    = "jsonl"
	FormatMarkdown = "markdown"
	FormatText     = "txt"
)

// Formats lists the formats accepted by [Export].
var Formats = []string{FormatCSV, FormatJSON, FormatJSONL, FormatMarkdown, FormatText}

// Extension returns the file extension used for format.
func Extension(format string) string {
	switch format {
	case FormatMarkdown:
		return ".md"
	case FormatText:
		return ".txt"
	default:
		return "." + format
	}
}

// EncodeDataset writes records as CSV with the [models.Columns] header row.
func EncodeDataset(w io.Writer, records []models.LyricRecord) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(models.Columns); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, r := range records {
		if err := writer.Write(r.Row()); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("CSV writer error: %w", err)
	}
	return nil
}

// headerIndex maps header names to column positions. A leading byte order mark is ignored.
func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, utf8BOM)
		}
		idx[strings.TrimSpace(h)] = i
	}
	return idx
}

// DecodeDataset reads a dataset written by [EncodeDataset].
//
// Columns are located by name; extra columns are ignored and a missing release_date column reads as [models.ReleaseDateUnknown].
// An empty input is an empty dataset.
func DecodeDataset(r io.Reader) ([]models.LyricRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return []models.LyricRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read CSV header: %v", shared.ErrInvalidInput, err)
	}

	idx := headerIndex(header)
	for _, col := range []string{"track_name", "artist", "lyrics"} {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("%w: dataset is missing column %q", shared.ErrInvalidInput, col)
		}
	}
	dateCol, hasDate := idx["release_date"]

	field := func(row []string, i int) string {
		if i < len(row) {
			return row[i]
		}
		return ""
	}

	records := []models.LyricRecord{}
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read CSV record: %v", shared.ErrInvalidInput, err)
		}

		releaseDate := models.ReleaseDateUnknown
		if hasDate {
			releaseDate = field(row, dateCol)
		}
		records = append(records, models.NewLyricRecord(
			field(row, idx["track_name"]),
			field(row, idx["artist"]),
			field(row, idx["lyrics"]),
			releaseDate,
		))
	}
	return records, nil
}

// DecodeColumn returns the values of the named column, skipping blank cells.
func DecodeColumn(r io.Reader, column string) ([]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: input has no header row", shared.ErrInvalidInput)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read CSV header: %v", shared.ErrInvalidInput, err)
	}

	col, ok := headerIndex(header)[column]
	if !ok {
		return nil, fmt.Errorf("%w: input is missing column %q", shared.ErrInvalidInput, column)
	}

	values := []string{}
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read CSV record: %v", shared.ErrInvalidInput, err)
		}
		if col < len(row) && strings.TrimSpace(row[col]) != "" {
			values = append(values, strings.TrimSpace(row[col]))
		}
	}
	return values, nil
}

// ExportToCSV converts records to CSV with the dataset header.
func ExportToCSV(records []models.LyricRecord) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeDataset(&buf, records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ExportToJSON converts records to an indented JSON array.
func ExportToJSON(records []models.LyricRecord) ([]byte, error) {
	if records == nil {
		records = []models.LyricRecord{}
	}
	return shared.MarshalJSON(records, true)
}

// ExportToJSONL converts records to JSON lines, one record per line.
func ExportToJSONL(records []models.LyricRecord) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return nil, fmt.Errorf("failed to encode record: %w", err)
		}
	}
	return buf.Bytes(), nil
}

// ExportToMarkdown renders records grouped by artist, one section per song.
func ExportToMarkdown(records []models.LyricRecord, title string) ([]byte, error) {
	var buf bytes.Buffer
	dataset := models.NewDataset(records)
	counts, order := dataset.CountByArtist()

	buf.WriteString(fmt.Sprintf("# %s\n\n", title))
	buf.WriteString(fmt.Sprintf("**Songs**: %d\n", len(records)))
	buf.WriteString(fmt.Sprintf("**Artists**: %d\n\n", len(order)))

	for _, artist := range order {
		buf.WriteString(fmt.Sprintf("## %s (%d)\n\n", artist, counts[artist]))
		for _, r := range records {
			if r.Artist != artist {
				continue
			}
			buf.WriteString(fmt.Sprintf("### %s\n\n", r.TrackName))
			if r.ReleaseDate != models.ReleaseDateUnknown {
				buf.WriteString(fmt.Sprintf("*Released %s*\n\n", r.ReleaseDate))
			}
			for _, line := range strings.Split(r.Lyrics, "\n") {
				buf.WriteString("> " + line + "\n")
			}
			buf.WriteString("\n")
		}
	}

	return buf.Bytes(), nil
}

// ExportToText converts records to plain text, songs separated by a rule.
func ExportToText(records []models.LyricRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Songs: %d\n\n", len(records)))
	for i, r := range records {
		buf.WriteString(fmt.Sprintf("%d. %s - %s [%s]\n\n", i+1, r.Artist, r.TrackName, r.ReleaseDate))
		buf.WriteString(r.Lyrics)
		buf.WriteString("\n\n----\n\n")
	}

	return buf.Bytes(), nil
}

// Export converts records to the named format.
func Export(records []models.LyricRecord, format, title string) ([]byte, error) {
	switch format {
	case FormatCSV:
		return ExportToCSV(records)
	case FormatJSON:
		return ExportToJSON(records)
	case FormatJSONL:
		return ExportToJSONL(records)
	case FormatMarkdown:
		return ExportToMarkdown(records, title)
	case FormatText:
		return ExportToText(records)
	default:
		return nil, fmt.Errorf("%w: unknown format %q (expected one of %s)", shared.ErrInvalidFlag, format, strings.Join(Formats, ", "))
	}
}

// WriteExport exports records to path in the named format.
func WriteExport(records []models.LyricRecord, format, title, path string) (string, error) {
	data, err := Export(records, format, title)
	if err != nil {
		return "", err
	}
	if err := shared.WriteFileAtomic(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s export: %w", format, err)
	}
	return path, nil
}
