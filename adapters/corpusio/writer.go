package corpusio

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/xuri/excelize/v2"

	"glyphstat/domain/corpus"
)

// WriteRecords stores records at path in the format its extension names.
func WriteRecords(path string, records []corpus.Record) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}
	if format == FormatXLSX {
		return writeExcel(path, records)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if format == FormatJSON {
		err = EncodeJSON(f, records)
	} else {
		err = encodeCSV(f, records)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

// EncodeJSON writes records as an indented JSON array.
func EncodeJSON(w io.Writer, records []corpus.Record) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

func row(r corpus.Record) []string {
	return []string{r.Text, r.LineID, r.RecordID, r.FolioID, strconv.Itoa(r.PositionInLine)}
}

func encodeCSV(w io.Writer, records []corpus.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(requiredColumns); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write(row(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeExcel(path string, records []corpus.Record) error {
	f := excelize.NewFile()
	defer f.Close()

	header := make([]interface{}, len(requiredColumns))
	for i, c := range requiredColumns {
		header[i] = c
	}
	if err := f.SetSheetRow(DefaultSheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, r := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []interface{}{r.Text, r.LineID, r.RecordID, r.FolioID, r.PositionInLine}
		if err := f.SetSheetRow(DefaultSheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save Excel file: %w", err)
	}
	return nil
}
