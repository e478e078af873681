// Package trialtable reads, cleans and writes the CSV trial table.
package trialtable

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/zatekoja/trialmatch/internal/domain/entities"
)

// maxRejectedRows bounds how many rejected row numbers a report keeps.
const maxRejectedRows = 50

// ErrEmptyTable is returned when the input has no header row.
var ErrEmptyTable = errors.New("trial table is empty")

// IngestionReport describes what happened to each data row of a table.
// RejectedRows holds 1-based data record numbers, header excluded.
type IngestionReport struct {
	Source         string   `json:"source"`
	Columns        int      `json:"columns"`
	Accepted       int      `json:"accepted"`
	Rejected       int      `json:"rejected"`
	RejectedRows   []int    `json:"rejected_rows,omitempty"`
	MissingColumns []string `json:"missing_columns,omitempty"`
}

func (r *IngestionReport) reject(record int) {
	r.Rejected++
	if len(r.RejectedRows) < maxRejectedRows {
		r.RejectedRows = append(r.RejectedRows, record)
	}
}

// Load reads the trial table at path.
func Load(path string) ([]entities.Trial, IngestionReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, IngestionReport{Source: path}, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()
	return Read(f, path)
}

// Read parses a trial table. Columns are located by header name, so extra
// columns and any column order are accepted. Rows whose cell count differs
// from the header, or with a cell starting with '<' (HTML or script debris
// from scraped exports), are rejected and counted.
func Read(r io.Reader, source string) ([]entities.Trial, IngestionReport, error) {
	report := IngestionReport{Source: source}

	var (
		trials []entities.Trial
		index  map[string]int
	)
	onHeader := func(header []string) error {
		index = make(map[string]int, len(header))
		for i, name := range header {
			index[name] = i
		}
		known := 0
		for _, col := range entities.TrialColumns {
			if _, ok := index[col]; ok {
				known++
			} else {
				report.MissingColumns = append(report.MissingColumns, col)
			}
		}
		if known == 0 {
			return fmt.Errorf("%s has no trial table columns", source)
		}
		return nil
	}
	onRow := func(row []string) error {
		var trial entities.Trial
		for name, i := range index {
			trial.SetField(name, strings.TrimSpace(row[i]))
		}
		trials = append(trials, trial)
		return nil
	}

	if err := scanTable(r, &report, onHeader, onRow); err != nil {
		return nil, report, err
	}
	return trials, report, nil
}

// Clean copies the acceptable rows of a raw table to w, header included.
func Clean(r io.Reader, w io.Writer, source string) (IngestionReport, error) {
	report := IngestionReport{Source: source}

	writer := csv.NewWriter(w)
	if err := scanTable(r, &report, writer.Write, writer.Write); err != nil {
		return report, err
	}

	writer.Flush()
	return report, writer.Error()
}

// scanTable reads the header and every data row of a table. The cleaned
// header goes to onHeader; each acceptable row goes to onRow and counts as
// accepted, while malformed or unacceptable rows are rejected in report.
func scanTable(r io.Reader, report *IngestionReport, onHeader, onRow func([]string) error) error {
	reader := newReader(r)
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return ErrEmptyTable
	}
	if err != nil {
		return fmt.Errorf("read header of %s: %w", report.Source, err)
	}
	header = cleanHeader(header)
	report.Columns = len(header)
	if err := onHeader(header); err != nil {
		return err
	}

	record := 0
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		record++
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				report.reject(record)
				continue
			}
			return fmt.Errorf("read %s: %w", report.Source, err)
		}
		if !acceptable(row, len(header)) {
			report.reject(record)
			continue
		}
		if err := onRow(row); err != nil {
			return err
		}
		report.Accepted++
	}
}

// CleanFile cleans the table at src into dst.
func CleanFile(src, dst string) (IngestionReport, error) {
	in, err := os.Open(src)
	if err != nil {
		return IngestionReport{Source: src}, fmt.Errorf("open %s: %w", filepath.Base(src), err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return IngestionReport{Source: src}, fmt.Errorf("create %s: %w", filepath.Base(dst), err)
	}

	report, err := Clean(in, out, src)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	return report, err
}

// Write emits trials as a table with the standard header.
func Write(w io.Writer, trials []entities.Trial) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(entities.TrialColumns); err != nil {
		return err
	}
	for _, trial := range trials {
		if err := writer.Write(trial.Row()); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteFile writes trials to path.
func WriteFile(path string, trials []entities.Trial) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	if err := Write(f, trials); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func newReader(r io.Reader) *csv.Reader {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	return reader
}

func cleanHeader(header []string) []string {
	out := make([]string, len(header))
	for i, cell := range header {
		out[i] = strings.TrimSpace(strings.TrimPrefix(cell, "\ufeff"))
	}
	return out
}

func acceptable(row []string, columns int) bool {
	if len(row) != columns {
		return false
	}
	for _, cell := range row {
		if strings.HasPrefix(strings.TrimSpace(cell), "<") {
			return false
		}
	}
	return true
}
