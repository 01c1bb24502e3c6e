package schedule

import (
	"encoding/json"
	"fmt"
)

// Spec carries a raw schedule specification as written in a config file.
//
// It unmarshals from any of the three accepted JSON/YAML shapes:
//
//	schedule: "1-5@09:30,13:30;6-7@10:00"
//	schedule: ["09:30", "13:30"]
//	schedule: {"1": ["09:30"], "every": ["18:00"]}
//
// Shape errors are deferred to Table() so config decoding can stay strict
// about structure while schedule validation reports token-level errors.
type Spec struct {
	raw any
}

// SpecString builds a Spec from a rule or time-list string.
func SpecString(s string) Spec { return Spec{raw: s} }

// SpecList builds a Spec from an ordered list of time strings.
func SpecList(items []string) Spec { return Spec{raw: items} }

// SpecMap builds a Spec from a day→times mapping.
func SpecMap(m map[string][]string) Spec { return Spec{raw: m} }

func (s Spec) IsZero() bool { return s.raw == nil }

// Table normalizes the spec. The zero Spec is an error.
func (s Spec) Table() (Table, error) {
	if s.raw == nil {
		return nil, fmt.Errorf("empty schedule spec")
	}
	return Parse(s.raw)
}

func (s *Spec) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		s.raw = str
		return nil
	}
	var list []string
	if err := json.Unmarshal(b, &list); err == nil {
		s.raw = list
		return nil
	}
	var m map[string][]string
	if err := json.Unmarshal(b, &m); err == nil {
		s.raw = m
		return nil
	}
	return fmt.Errorf("schedule spec must be a string, a list of times or a day→times mapping")
}

func (s Spec) MarshalJSON() ([]byte, error) {
	if s.raw == nil {
		return []byte("null"), nil
	}
	return json.Marshal(s.raw)
}
