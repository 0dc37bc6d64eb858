package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// maxRangeSpan bounds "lo-hi" expansion so a typo such as "1-99999999"
// stays a single reportable cell instead of a huge list.
const maxRangeSpan = 1000

// StringList is an ordered list of strings. Spreadsheet cells usually carry
// these as a comma separated string, so both that form and a proper array
// are accepted.
type StringList []string

// UnmarshalJSON accepts an array of scalars or a comma separated string.
func (l *StringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = splitList(s)
		return nil
	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		out := make(StringList, 0, len(raw))
		for _, item := range raw {
			v, ok := scalarText(item)
			if !ok {
				return fmt.Errorf("list element %s is not a scalar", item)
			}
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
		*l = out
		return nil
	case '{':
		return fmt.Errorf("expected list, got object")
	default:
		*l = splitList(string(data))
		return nil
	}
}

// UnmarshalYAML mirrors UnmarshalJSON for YAML fixtures.
func (l *StringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			*l = nil
			return nil
		}
		*l = splitList(node.Value)
		return nil
	case yaml.SequenceNode:
		out := make(StringList, 0, len(node.Content))
		for _, child := range node.Content {
			if child.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: list element is not a scalar", child.Line)
			}
			if v := strings.TrimSpace(child.Value); v != "" {
				out = append(out, v)
			}
		}
		*l = out
		return nil
	default:
		return fmt.Errorf("line %d: expected list", node.Line)
	}
}

func splitList(s string) StringList {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	var out StringList
	for _, part := range strings.Split(s, ",") {
		part = strings.Trim(strings.TrimSpace(part), `"'`)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// PhaseList is an ordered list of phase cells. Cells keep their source text
// so that entries which are not positive integers survive ingestion and can
// be reported by the validator instead of being dropped.
type PhaseList struct {
	Cells []string
	// Malformed is set when the source value was not a list at all.
	Malformed bool
	// Raw holds the source value when Malformed is set.
	Raw string
}

// NewPhaseList builds a well-formed list from integer phases.
func NewPhaseList(phases ...int) PhaseList {
	cells := make([]string, len(phases))
	for i, p := range phases {
		cells[i] = strconv.Itoa(p)
	}
	return PhaseList{Cells: cells}
}

// Len returns the number of cells, valid or not.
func (p PhaseList) Len() int { return len(p.Cells) }

// Phases returns the distinct positive integer phases in first-seen order.
func (p PhaseList) Phases() []int {
	seen := make(map[int]struct{}, len(p.Cells))
	out := make([]int, 0, len(p.Cells))
	for _, c := range p.Cells {
		n, ok := ParsePhase(c)
		if !ok {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// Contains reports whether phase is one of the valid phases of the list.
func (p PhaseList) Contains(phase int) bool {
	for _, c := range p.Cells {
		if n, ok := ParsePhase(c); ok && n == phase {
			return true
		}
	}
	return false
}

// ParsePhase parses a single cell as a positive integer. Integral floats
// such as "2.0" are accepted since spreadsheet exports often produce them.
func ParsePhase(cell string) (int, bool) {
	cell = strings.TrimSpace(cell)
	if n, err := strconv.Atoi(cell); err == nil {
		return n, n > 0
	}
	f, err := strconv.ParseFloat(cell, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	if f != math.Trunc(f) || f < 1 || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

// MarshalJSON writes well-formed lists as arrays, numbers where possible.
// Malformed lists are written back in their source form.
func (p PhaseList) MarshalJSON() ([]byte, error) {
	if p.Malformed {
		if json.Valid([]byte(p.Raw)) {
			return []byte(p.Raw), nil
		}
		return json.Marshal(p.Raw)
	}
	out := make([]any, len(p.Cells))
	for i, c := range p.Cells {
		if n, err := strconv.Atoi(c); err == nil {
			out[i] = n
			continue
		}
		out[i] = c
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts arrays, "[1,2]" strings, "1,2" lists, "1-3" ranges
// and bare numbers. Anything else is kept as a malformed list.
func (p *PhaseList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*p = PhaseList{}
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	switch data[0] {
	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			p.markMalformed(string(data))
			return nil
		}
		for _, item := range raw {
			v, ok := scalarText(item)
			if !ok {
				p.markMalformed(string(data))
				return nil
			}
			if strings.TrimSpace(v) == "" {
				continue
			}
			p.Cells = append(p.Cells, expandCell(v)...)
		}
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		p.parseText(s)
	case '{', 't', 'f':
		p.markMalformed(string(data))
	default:
		p.Cells = []string{string(data)}
	}
	return nil
}

// UnmarshalYAML mirrors UnmarshalJSON for YAML fixtures.
func (p *PhaseList) UnmarshalYAML(node *yaml.Node) error {
	*p = PhaseList{}
	switch node.Kind {
	case yaml.ScalarNode:
		switch node.Tag {
		case "!!null":
		case "!!str":
			p.parseText(node.Value)
		case "!!int", "!!float":
			p.Cells = []string{node.Value}
		default:
			p.markMalformed(node.Value)
		}
	case yaml.SequenceNode:
		for _, child := range node.Content {
			if child.Kind != yaml.ScalarNode {
				p.markMalformed(yamlAsJSON(node))
				return nil
			}
			p.Cells = append(p.Cells, expandCell(child.Value)...)
		}
	default:
		p.markMalformed(yamlAsJSON(node))
	}
	return nil
}

func (p *PhaseList) parseText(s string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return
	}
	if strings.HasPrefix(s, "[") {
		var inner PhaseList
		if err := inner.UnmarshalJSON([]byte(s)); err == nil && !inner.Malformed {
			p.Cells = inner.Cells
			return
		}
		if !strings.HasSuffix(s, "]") {
			p.markMalformed(s)
			return
		}
		s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
	}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		p.Cells = append(p.Cells, expandCell(part)...)
	}
}

func (p *PhaseList) markMalformed(raw string) {
	p.Cells = nil
	p.Malformed = true
	p.Raw = raw
}

// expandCell turns "lo-hi" into its phases. Other text is returned as-is.
func expandCell(cell string) []string {
	cell = strings.TrimSpace(cell)
	lo, hi, ok := strings.Cut(cell, "-")
	if !ok || strings.TrimSpace(lo) == "" {
		return []string{cell}
	}
	from, err1 := strconv.Atoi(strings.TrimSpace(lo))
	to, err2 := strconv.Atoi(strings.TrimSpace(hi))
	if err1 != nil || err2 != nil || from < 1 || to < from || to-from > maxRangeSpan {
		return []string{cell}
	}
	out := make([]string, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, strconv.Itoa(i))
	}
	return out
}

// scalarText returns the text of a JSON scalar; false for arrays and objects.
func scalarText(item json.RawMessage) (string, bool) {
	item = bytes.TrimSpace(item)
	if len(item) == 0 {
		return "", true
	}
	switch item[0] {
	case '"':
		var s string
		if err := json.Unmarshal(item, &s); err != nil {
			return "", false
		}
		return s, true
	case '[', '{':
		return "", false
	case 'n':
		return "", true
	default:
		return string(item), true
	}
}

func yamlAsJSON(node *yaml.Node) string {
	var v any
	if err := node.Decode(&v); err != nil {
		return node.Value
	}
	b, err := json.Marshal(v)
	if err != nil {
		return node.Value
	}
	return string(b)
}
