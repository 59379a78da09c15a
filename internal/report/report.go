// Package report renders evaluation rankings as CSV or XLSX.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/MikeSquared-Agency/Kredit/internal/decision"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

const (
	SheetRanking     = "Ranking"
	SheetValues      = "Values"
	SheetDiagnostics = "Diagnostics"
)

// ParseFormat accepts "csv" or "xlsx", case-insensitively. Empty means CSV.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "csv":
		return FormatCSV, nil
	case "xlsx":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unsupported report format %q", s)
}

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	return ParseFormat(strings.TrimPrefix(filepath.Ext(path), "."))
}

func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

// Writer renders evaluations. Labels maps field -> numeric code -> display
// label; coded fields without a label fall back to the number.
type Writer struct {
	labels map[string]map[string]string
}

func NewWriter(labels map[string]map[string]string) *Writer {
	return &Writer{labels: labels}
}

// Write renders eval in the given format.
func (rw *Writer) Write(w io.Writer, format Format, eval *decision.Evaluation) error {
	switch format {
	case FormatCSV:
		return rw.WriteCSV(w, eval)
	case FormatXLSX:
		return rw.WriteXLSX(w, eval)
	}
	return fmt.Errorf("unsupported report format %q", format)
}

// WriteFile creates path and renders eval in the format its extension names.
func (rw *Writer) WriteFile(path string, eval *decision.Evaluation) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := rw.Write(f, format, eval); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Header is Rank, ID, Name, Score followed by one column per criterion.
func Header(eval *decision.Evaluation) []string {
	header := []string{"Rank", "ID", "Name", "Score"}
	return append(header, eval.Criteria...)
}

// Rows returns one row per ranked applicant with labelled criterion values.
func (rw *Writer) Rows(eval *decision.Evaluation) [][]string {
	rows := make([][]string, 0, len(eval.Results))
	for _, r := range eval.Results {
		row := []string{
			strconv.Itoa(r.Rank),
			r.ID,
			r.Name,
			formatFloat(r.Score),
		}
		for j, v := range r.RawValues {
			row = append(row, rw.label(fieldAt(eval, j), v))
		}
		rows = append(rows, row)
	}
	return rows
}

func (rw *Writer) WriteCSV(w io.Writer, eval *decision.Evaluation) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header(eval)); err != nil {
		return err
	}
	for _, row := range rw.Rows(eval) {
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes a workbook with the ranking, the per-criterion normalized
// values (SAW) or local priorities (AHP) and a diagnostics sheet.
func (rw *Writer) WriteXLSX(w io.Writer, eval *decision.Evaluation) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetRanking); err != nil {
		return err
	}
	ranking := make([][]interface{}, 0, len(eval.Results))
	for i, row := range rw.Rows(eval) {
		r := eval.Results[i]
		cells := []interface{}{r.Rank, r.ID, r.Name, r.Score}
		for _, v := range row[4:] {
			cells = append(cells, v)
		}
		ranking = append(ranking, cells)
	}
	if err := writeSheet(f, SheetRanking, Header(eval), ranking); err != nil {
		return err
	}

	if _, err := f.NewSheet(SheetValues); err != nil {
		return err
	}
	values := make([][]interface{}, 0, len(eval.Results))
	for _, r := range eval.Results {
		cells := []interface{}{r.Rank, r.ID, r.Name, r.Score}
		for _, v := range r.Values {
			cells = append(cells, v)
		}
		values = append(values, cells)
	}
	if err := writeSheet(f, SheetValues, Header(eval), values); err != nil {
		return err
	}

	if _, err := f.NewSheet(SheetDiagnostics); err != nil {
		return err
	}
	if err := writeSheet(f, SheetDiagnostics, []string{"Metric", "Value"}, diagnostics(eval)); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	return f.Write(w)
}

func diagnostics(eval *decision.Evaluation) [][]interface{} {
	cc := eval.CriteriaConsistency
	rows := [][]interface{}{
		{"Method", string(eval.Method)},
		{"Weights from pairwise", eval.WeightsFromPairwise},
		{"Lambda max", cc.LambdaMax},
		{"CI", cc.CI},
		{"CR", cc.CR},
		{"Consistency warning", eval.ConsistencyWarning},
	}
	for i, name := range eval.Criteria {
		if i < len(eval.Weights) {
			rows = append(rows, []interface{}{"Weight " + name, eval.Weights[i]})
		}
	}
	if len(eval.AlternativeConsistency) > 0 {
		rows = append(rows, []interface{}{"Mean alternative CR", eval.MeanAlternativeCR})
		for i, m := range eval.AlternativeConsistency {
			if i < len(eval.Criteria) {
				rows = append(rows, []interface{}{"CR " + eval.Criteria[i], m.CR})
			}
		}
	}
	rows = append(rows, []interface{}{"Pareto frontier", strings.Join(eval.ParetoFrontier, ", ")})
	for _, in := range eval.Ineligible {
		rows = append(rows, []interface{}{"Ineligible " + in.ID, in.Reason})
	}
	return rows
}

func writeSheet(f *excelize.File, sheet string, header []string, rows [][]interface{}) error {
	for i, h := range header {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	for r, row := range rows {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func fieldAt(eval *decision.Evaluation, j int) string {
	if j < len(eval.Fields) {
		return eval.Fields[j]
	}
	return ""
}

func (rw *Writer) label(field string, v float64) string {
	code := formatFloat(v)
	if l, ok := rw.labels[field][code]; ok {
		return l
	}
	return code
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
