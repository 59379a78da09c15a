package decision

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
)

// Canonical applicant fields.
const (
	FieldAge        = "age"
	FieldIncome     = "income"
	FieldJob        = "job"
	FieldCollateral = "collateral"
)

// Kind is the preference direction of a criterion.
type Kind string

const (
	KindBenefit Kind = "benefit"
	KindCost    Kind = "cost"
)

// FieldRule maps criterion display names containing any keyword to a field.
type FieldRule struct {
	Field    string   `json:"field" yaml:"field"`
	Keywords []string `json:"keywords" yaml:"keywords"`
	Kind     Kind     `json:"kind" yaml:"kind"`
}

// FieldTable is the declarative criterion-name-to-field configuration.
// Rules are tried in order.
type FieldTable []FieldRule

// DefaultFieldTable returns the built-in Indonesian/English keyword table.
func DefaultFieldTable() FieldTable {
	return FieldTable{
		{Field: FieldAge, Keywords: []string{"usia", "age"}, Kind: KindCost},
		{Field: FieldIncome, Keywords: []string{"pendapatan", "income", "gaji"}, Kind: KindBenefit},
		{Field: FieldJob, Keywords: []string{"pekerjaan", "job"}, Kind: KindBenefit},
		{Field: FieldCollateral, Keywords: []string{"jaminan", "agunan", "collateral"}, Kind: KindBenefit},
	}
}

// Resolve maps a criterion name to a field. Names are matched by
// case-insensitive substring against each rule's keywords; failing that, the
// trimmed name must equal one of known or a rule's field exactly.
func (t FieldTable) Resolve(criterion string, known []string) (FieldRule, error) {
	name := fold(criterion)
	for _, rule := range t {
		for _, kw := range rule.Keywords {
			if kw != "" && strings.Contains(name, fold(kw)) {
				return rule, nil
			}
		}
	}

	candidate := strings.TrimSpace(name)
	for _, rule := range t {
		if fold(rule.Field) == candidate {
			return rule, nil
		}
	}
	for _, field := range known {
		if fold(field) == candidate {
			return FieldRule{Field: field, Kind: KindBenefit}, nil
		}
	}
	return FieldRule{}, &MappingError{Criterion: criterion, Msg: "no field matches"}
}

func fold(s string) string {
	return cases.Fold().String(s)
}

// Record is one applicant: identity plus raw attribute values keyed by field.
// Values are numbers or category labels.
type Record struct {
	ID         string                 `json:"id" yaml:"id"`
	Name       string                 `json:"name" yaml:"name"`
	Attributes map[string]interface{} `json:"attributes" yaml:"attributes"`
}

// ValueMapper converts raw attribute values to numeric codes.
type ValueMapper struct {
	// Categorical maps field -> raw label -> numeric code.
	Categorical map[string]map[string]float64
}

// DefaultCategoricalMappings returns the label codes used for job and
// collateral when those are stored as text.
func DefaultCategoricalMappings() map[string]map[string]float64 {
	return map[string]map[string]float64{
		FieldJob: {
			"PNS": 4, "Karyawan": 3, "Wiraswasta": 2, "Petani": 2, "Mahasiswa": 1,
		},
		FieldCollateral: {
			"Sertifikat": 4, "BPKB Mobil": 3, "BPKB Motor": 2, "-": 1,
		},
	}
}

// Value returns the numeric value of raw for field. A categorical mapping wins
// over numeric parsing; values that are neither map to 0.
func (m ValueMapper) Value(field string, raw interface{}) float64 {
	key := rawString(raw)
	if codes, ok := m.Categorical[field]; ok {
		if v, ok := codes[key]; ok {
			return v
		}
	}
	if v, ok := numeric(raw); ok {
		return v
	}
	return 0
}

func rawString(raw interface{}) string {
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func numeric(raw interface{}) (float64, bool) {
	var v float64
	switch x := raw.(type) {
	case float64:
		v = x
	case float32:
		v = float64(x)
	case int:
		v = float64(x)
	case int32:
		v = float64(x)
	case int64:
		v = float64(x)
	case uint:
		v = float64(x)
	case uint64:
		v = float64(x)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, false
		}
		v = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		v = f
	default:
		return 0, false
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// DecisionMatrix holds raw numeric attribute values, one row per alternative
// and one column per criterion.
type DecisionMatrix struct {
	IDs    []string `json:"ids"`
	Names  []string `json:"names"`
	Fields []string `json:"fields"`
	Values Matrix   `json:"values"`
}

// BuildDecisionMatrix extracts fields from every record in order.
func BuildDecisionMatrix(records []Record, fields []string, mapper ValueMapper) (*DecisionMatrix, error) {
	if len(records) == 0 {
		return nil, dataErrorf("decision matrix", "no alternatives")
	}
	if len(fields) == 0 {
		return nil, dataErrorf("decision matrix", "no criteria")
	}
	dm := &DecisionMatrix{
		IDs:    make([]string, len(records)),
		Names:  make([]string, len(records)),
		Fields: append([]string(nil), fields...),
		Values: make(Matrix, len(records)),
	}
	for i, rec := range records {
		dm.IDs[i] = rec.ID
		dm.Names[i] = rec.Name
		row := make([]float64, len(fields))
		for j, field := range fields {
			raw, ok := rec.Attributes[field]
			if !ok {
				return nil, dataErrorf("decision matrix", "alternative %q has no value for field %q", rec.Name, field)
			}
			row[j] = mapper.Value(field, raw)
		}
		dm.Values[i] = row
	}
	return dm, nil
}

// attributeKeys returns every attribute key present on any record, in first
// seen order.
func attributeKeys(records []Record) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, rec := range records {
		for k := range rec.Attributes {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	return keys
}
