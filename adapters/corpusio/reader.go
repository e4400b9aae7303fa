// Package corpusio reads and writes the files the pipeline consumes: token
// records as JSON, xlsx or csv, inventories and hypothesis batteries as YAML.
package corpusio

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"glyphstat/domain/core"
	"glyphstat/domain/corpus"
	"glyphstat/internal/logging"
	"glyphstat/ports"
)

// Column headers of a tabular corpus.
const (
	ColText           = "text"
	ColLineID         = "line_id"
	ColRecordID       = "record_id"
	ColFolioID        = "folio_id"
	ColPositionInLine = "position_in_line"
)

// DefaultSheet is read when a reader is not given a sheet name.
const DefaultSheet = "Sheet1"

var requiredColumns = []string{ColText, ColLineID, ColRecordID, ColFolioID, ColPositionInLine}

// Format is a corpus file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// FormatOf infers the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".xlsx":
		return FormatXLSX, nil
	case ".csv":
		return FormatCSV, nil
	default:
		return "", core.NewValidationError("corpus", fmt.Sprintf("unsupported file type %q", filepath.Ext(path)))
	}
}

// Reader loads token records from one corpus file.
type Reader struct {
	path   string
	sheet  string
	logger *zap.Logger
}

var _ ports.CorpusReaderPort = (*Reader)(nil)

// NewReader creates a reader for path. sheet selects the xlsx worksheet and
// defaults to DefaultSheet.
func NewReader(path, sheet string, logger *zap.Logger) *Reader {
	if sheet == "" {
		sheet = DefaultSheet
	}
	return &Reader{path: path, sheet: sheet, logger: logging.OrNop(logger).Named("corpusio")}
}

// ReadRecords decodes every token record in file order.
func (r *Reader) ReadRecords(ctx context.Context) ([]corpus.Record, error) {
	format, err := FormatOf(r.path)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(r.path); err != nil {
		return nil, fmt.Errorf("%w: corpus file %s", core.ErrNotFound, r.path)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	var records []corpus.Record
	switch format {
	case FormatJSON:
		records, err = r.readJSON()
	case FormatXLSX:
		records, err = r.readExcel()
	case FormatCSV:
		records, err = r.readCSV()
	}
	if err != nil {
		return nil, err
	}
	r.logger.Info("corpus file read",
		zap.String("path", r.path),
		zap.String("format", string(format)),
		zap.Int("records", len(records)),
		zap.Duration("elapsed", time.Since(start)))
	return records, nil
}

func (r *Reader) readJSON() ([]corpus.Record, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open corpus file: %w", err)
	}
	defer f.Close()
	return DecodeJSON(f)
}

// readExcel reads the configured worksheet; the first row is the header.
func (r *Reader) readExcel() ([]corpus.Record, error) {
	f, err := excelize.OpenFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(r.sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", r.sheet, err)
	}
	return processRows(rows)
}

func (r *Reader) readCSV() ([]corpus.Record, error) {
	file, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	return processRows(rows)
}

// processRows maps header names to columns so the column order of a sheet
// does not matter. Blank trailing rows are skipped.
func processRows(rows [][]string) ([]corpus.Record, error) {
	if len(rows) < 2 {
		return nil, core.NewValidationError("corpus", "file must have a header row and at least one data row")
	}
	index := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return nil, core.NewValidationError("corpus", fmt.Sprintf("missing column %q", col))
		}
	}

	cell := func(row []string, col string) string {
		i := index[col]
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	records := make([]corpus.Record, 0, len(rows)-1)
	for n, row := range rows[1:] {
		if blank(row) {
			continue
		}
		pos, err := strconv.Atoi(cell(row, ColPositionInLine))
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: position_in_line %q is not an integer",
				core.ErrInvalidRecord, n+2, cell(row, ColPositionInLine))
		}
		records = append(records, corpus.Record{
			Text:           cell(row, ColText),
			LineID:         cell(row, ColLineID),
			RecordID:       cell(row, ColRecordID),
			FolioID:        cell(row, ColFolioID),
			PositionInLine: pos,
		})
	}
	return records, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// DecodeJSON reads a JSON array of token records.
func DecodeJSON(r io.Reader) ([]corpus.Record, error) {
	var records []corpus.Record
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidRecord, err)
	}
	return records, nil
}
