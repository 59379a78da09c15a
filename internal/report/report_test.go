package report

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/MikeSquared-Agency/Kredit/internal/decision"
)

func testLabels() map[string]map[string]string {
	return map[string]map[string]string{
		decision.FieldAge: {"1": "<25", "2": "25-35", "3": "36-50", "4": ">50"},
		decision.FieldJob: {"3": "Karyawan", "4": "PNS"},
	}
}

func testEvaluation() *decision.Evaluation {
	return &decision.Evaluation{
		Method:   decision.MethodSAW,
		Criteria: []string{"Usia", "Pendapatan", "Pekerjaan"},
		Fields:   []string{decision.FieldAge, decision.FieldIncome, decision.FieldJob},
		Weights:  []float64{0.2, 0.5, 0.3},
		Benefit:  []bool{false, true, true},
		Results: []decision.ScoreResult{
			{ID: "B", Name: "Budi", Score: 0.9, Rank: 1, Values: []float64{1, 1, 1}, RawValues: []float64{1, 4, 4}},
			{ID: "A", Name: "Ani", Score: 0.5, Rank: 2, Values: []float64{0.5, 0.25, 0.75}, RawValues: []float64{2, 1, 3}},
		},
		Ineligible: []decision.Ineligible{
			{ID: "D", Name: "Dedi", Reason: "age category 4 (over 50)"},
		},
		CriteriaConsistency: decision.ConsistencyMetrics{Weights: []float64{0.2, 0.5, 0.3}, LambdaMax: 3},
		ParetoFrontier:      []string{"B"},
		ScoredIDs:           []string{"B", "A"},
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatCSV, "csv": FormatCSV, "XLSX": FormatXLSX, " xlsx ": FormatXLSX} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseFormat("pdf")
	assert.Error(t, err)

	f, err := FormatFromPath("/tmp/out.xlsx")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, f)
	assert.Equal(t, "text/csv", FormatCSV.ContentType())
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewWriter(testLabels()).WriteCSV(&buf, testEvaluation()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"Rank", "ID", "Name", "Score", "Usia", "Pendapatan", "Pekerjaan"}, records[0])
	assert.Equal(t, []string{"1", "B", "Budi", "0.9", "<25", "4", "PNS"}, records[1])
	assert.Equal(t, []string{"2", "A", "Ani", "0.5", "25-35", "1", "Karyawan"}, records[2])
}

func TestWriteCSVNoResults(t *testing.T) {
	eval := testEvaluation()
	eval.Results = nil
	eval.NoEligible = true

	var buf bytes.Buffer
	require.NoError(t, NewWriter(nil).WriteCSV(&buf, eval))
	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewWriter(testLabels()).WriteXLSX(&buf, testEvaluation()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetRanking, SheetValues, SheetDiagnostics}, f.GetSheetList())

	ranking, err := f.GetRows(SheetRanking)
	require.NoError(t, err)
	require.Len(t, ranking, 3)
	assert.Equal(t, []string{"1", "B", "Budi", "0.9", "<25", "4", "PNS"}, ranking[1])

	values, err := f.GetRows(SheetValues)
	require.NoError(t, err)
	require.Len(t, values, 3)
	assert.Equal(t, []string{"2", "A", "Ani", "0.5", "0.5", "0.25", "0.75"}, values[2])

	diag, err := f.GetRows(SheetDiagnostics)
	require.NoError(t, err)
	found := map[string]string{}
	for _, row := range diag[1:] {
		if len(row) == 2 {
			found[row[0]] = row[1]
		}
	}
	assert.Equal(t, "saw", found["Method"])
	assert.Equal(t, "B", found["Pareto frontier"])
	assert.Equal(t, "0.5", found["Weight Pendapatan"])
	assert.Equal(t, "age category 4 (over 50)", found["Ineligible D"])
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(testLabels())

	csvPath := filepath.Join(dir, "ranking.csv")
	require.NoError(t, w.WriteFile(csvPath, testEvaluation()))
	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Budi")

	err = w.WriteFile(filepath.Join(dir, "ranking.pdf"), testEvaluation())
	assert.Error(t, err)
}
