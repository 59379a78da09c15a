package decision

import (
	"fmt"
	"math"
)

// EligibilityRule excludes applicants whose age attribute is the reserved
// over-threshold category code or an actual age above MaxAge.
type EligibilityRule struct {
	Field        string `json:"field" yaml:"field"`
	ReservedCode int    `json:"reserved_code" yaml:"reserved_code"`
	MaxAge       int    `json:"max_age" yaml:"max_age"`
}

// DefaultEligibilityRule: age category 4 means "over 50".
func DefaultEligibilityRule() EligibilityRule {
	return EligibilityRule{Field: FieldAge, ReservedCode: 4, MaxAge: 50}
}

// Ineligible identifies a filtered-out applicant and why.
type Ineligible struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Check returns false and a reason when rec fails the rule. Records without
// the field, or with a non-numeric value, pass.
func (r EligibilityRule) Check(rec Record) (bool, string) {
	raw, ok := rec.Attributes[r.Field]
	if !ok {
		return true, ""
	}
	v, ok := numeric(raw)
	if !ok {
		return true, ""
	}
	age := int(math.Trunc(v))
	if age == r.ReservedCode {
		return false, fmt.Sprintf("%s category %d (over %d)", r.Field, age, r.MaxAge)
	}
	if age > r.MaxAge {
		return false, fmt.Sprintf("%s %d over %d", r.Field, age, r.MaxAge)
	}
	return true, ""
}

// Filter splits records into eligible ones, in input order, and the
// ineligible ones with reasons. Nothing is dropped silently.
func (r EligibilityRule) Filter(records []Record) ([]Record, []Ineligible) {
	eligible := make([]Record, 0, len(records))
	ineligible := []Ineligible{}
	for _, rec := range records {
		if ok, reason := r.Check(rec); !ok {
			ineligible = append(ineligible, Ineligible{ID: rec.ID, Name: rec.Name, Reason: reason})
			continue
		}
		eligible = append(eligible, rec)
	}
	return eligible, ineligible
}
