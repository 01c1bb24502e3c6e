package schedule

import (
	"fmt"
	"strings"
)

// Parse normalizes one of the three accepted spec shapes into a Table.
// Any other input type is rejected.
func Parse(spec any) (Table, error) {
	switch v := spec.(type) {
	case string:
		return ParseString(v)
	case []string:
		return ParseList(v)
	case map[string][]string:
		return ParseMap(v)
	default:
		return nil, fmt.Errorf("unsupported schedule spec type %T (want string, []string or map[string][]string)", spec)
	}
}

// ParseString parses either a plain comma-separated time list ("09:30,13:30")
// or a rule string ("1-5@09:30,13:30;6-7@10:00").
//
// A ';'-separated rule without '@' is accepted only when every comma token is
// a time; it folds into the Every bucket. This keeps mixed legacy specs like
// "18:00;6-7@10:00" working.
func ParseString(s string) (Table, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("empty schedule spec")
	}
	tbl := Table{}
	for _, rule := range strings.Split(s, ";") {
		rule = strings.TrimSpace(rule)
		if rule == "" {
			continue
		}
		if err := parseRule(rule, tbl); err != nil {
			return nil, err
		}
	}
	if tbl.Len() == 0 {
		return nil, fmt.Errorf("schedule spec %q contains no triggers", s)
	}
	return tbl, nil
}

// ParseList parses an already-split ordered list of time strings.
// Every entry must be a valid time; the result lives in the Every bucket.
func ParseList(items []string) (Table, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("empty schedule spec")
	}
	tbl := Table{}
	for _, it := range items {
		tm, err := ParseTime(strings.TrimSpace(it))
		if err != nil {
			return nil, err
		}
		tbl.add(Every, tm)
	}
	return tbl, nil
}

// ParseMap parses the mapping shape: keys are "every" or a day token 1..7,
// values are ordered lists of time strings.
func ParseMap(m map[string][]string) (Table, error) {
	if len(m) == 0 {
		return nil, fmt.Errorf("empty schedule spec")
	}
	tbl := Table{}
	for key, times := range m {
		day, err := parseMapKey(key)
		if err != nil {
			return nil, err
		}
		if len(times) == 0 {
			return nil, fmt.Errorf("schedule key %q has no times", key)
		}
		for _, it := range times {
			tm, err := ParseTime(strings.TrimSpace(it))
			if err != nil {
				return nil, err
			}
			tbl.add(day, tm)
		}
	}
	return tbl, nil
}

func parseMapKey(key string) (Day, error) {
	k := strings.ToLower(strings.TrimSpace(key))
	if k == "every" {
		return Every, nil
	}
	if len(k) == 1 && k[0] >= '1' && k[0] <= '7' {
		return weekOrder[k[0]-'1'], nil
	}
	return 0, fmt.Errorf("unrecognized schedule key %q (want \"every\" or a day 1..7)", key)
}

// parseRule handles one ';'-separated rule, adding its triggers to tbl.
func parseRule(rule string, tbl Table) error {
	i := strings.IndexByte(rule, '@')
	if i < 0 {
		// No dayspec: valid only if every token is a time (Every bucket).
		times, err := parseTimeList(rule)
		if err != nil {
			return err
		}
		for _, tm := range times {
			tbl.add(Every, tm)
		}
		return nil
	}

	days, err := parseDaySpec(rule[:i])
	if err != nil {
		return err
	}
	times, err := parseTimeList(rule[i+1:])
	if err != nil {
		return err
	}
	for _, d := range days {
		for _, tm := range times {
			tbl.add(d, tm)
		}
	}
	return nil
}

// parseDaySpec expands a comma-separated set of day tokens and ranges.
func parseDaySpec(s string) ([]Day, error) {
	var out []Day
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		switch {
		case tok == "":
			return nil, fmt.Errorf("empty day token in %q", s)
		case len(tok) == 1:
			d, err := parseDayDigit(tok[0], tok)
			if err != nil {
				return nil, err
			}
			out = append(out, d)
		case len(tok) == 3 && tok[1] == '-':
			days, err := expandDayRange(tok)
			if err != nil {
				return nil, err
			}
			out = append(out, days...)
		default:
			return nil, fmt.Errorf("invalid day token %q (want a digit 1..7 or a range like \"1-5\")", tok)
		}
	}
	return out, nil
}

func parseDayDigit(c byte, tok string) (Day, error) {
	if c < '1' || c > '7' {
		return 0, fmt.Errorf("invalid day %q in token %q (want 1..7)", string(c), tok)
	}
	return weekOrder[c-'1'], nil
}

// expandDayRange expands "a-b" over the Monday-first week order.
// When a > b the range wraps around the week end: "5-2" yields
// Friday, Saturday, Sunday, Monday, Tuesday.
func expandDayRange(tok string) ([]Day, error) {
	if _, err := parseDayDigit(tok[0], tok); err != nil {
		return nil, err
	}
	if _, err := parseDayDigit(tok[2], tok); err != nil {
		return nil, err
	}
	a, b := int(tok[0]-'1'), int(tok[2]-'1')
	if a <= b {
		return append([]Day(nil), weekOrder[a:b+1]...), nil
	}
	out := append([]Day(nil), weekOrder[a:]...)
	return append(out, weekOrder[:b+1]...), nil
}

// parseTimeList parses a non-empty comma-separated time list.
func parseTimeList(s string) ([]Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("empty time list in schedule rule")
	}
	var out []Time
	for _, tok := range strings.Split(s, ",") {
		tm, err := ParseTime(strings.TrimSpace(tok))
		if err != nil {
			return nil, err
		}
		out = append(out, tm)
	}
	return out, nil
}
