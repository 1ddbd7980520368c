package survey

import "strings"

// ValueMap is an ordered mapping from response code to display label. The
// insertion order is the order declared by the source metadata and drives
// row and column ordering of every table built from it.
type ValueMap struct {
	keys   []int
	labels map[int]string
}

// NewValueMap returns an empty value map.
func NewValueMap() *ValueMap {
	return &ValueMap{labels: map[int]string{}}
}

// Set adds or replaces a label. Replacing keeps the original position.
func (v *ValueMap) Set(code int, label string) {
	if v.labels == nil {
		v.labels = map[int]string{}
	}
	if _, ok := v.labels[code]; !ok {
		v.keys = append(v.keys, code)
	}
	v.labels[code] = label
}

// Len returns the number of entries.
func (v *ValueMap) Len() int {
	if v == nil {
		return 0
	}
	return len(v.keys)
}

// Codes returns response codes in declaration order.
func (v *ValueMap) Codes() []int {
	if v == nil {
		return nil
	}
	out := make([]int, len(v.keys))
	copy(out, v.keys)
	return out
}

// Label returns the label for a response code.
func (v *ValueMap) Label(code int) (string, bool) {
	if v == nil {
		return "", false
	}
	l, ok := v.labels[code]
	return l, ok
}

// Labels returns trimmed labels in declaration order.
func (v *ValueMap) Labels() []string {
	if v == nil {
		return nil
	}
	out := make([]string, len(v.keys))
	for i, k := range v.keys {
		out[i] = strings.TrimSpace(v.labels[k])
	}
	return out
}

// VariableMetadata is the normalized view of one raw column.
type VariableMetadata struct {
	Code   string
	Label  string
	Values *ValueMap
}

// Metadata holds labels and value labels by column code.
type Metadata struct {
	labels map[string]string
	values map[string]*ValueMap
}

// NewMetadata returns empty metadata.
func NewMetadata() *Metadata {
	return &Metadata{labels: map[string]string{}, values: map[string]*ValueMap{}}
}

// SetLabel records the column label for code.
func (m *Metadata) SetLabel(code, label string) { m.labels[code] = label }

// SetValues records the value map for code.
func (m *Metadata) SetValues(code string, vm *ValueMap) { m.values[code] = vm }

// Variable returns the metadata record for code. Missing labels become "" and
// missing value maps become an empty map.
func (m *Metadata) Variable(code string) VariableMetadata {
	out := VariableMetadata{Code: code, Values: NewValueMap()}
	if m == nil {
		return out
	}
	out.Label = strings.TrimSpace(m.labels[code])
	if vm, ok := m.values[code]; ok && vm != nil {
		out.Values = vm
	}
	return out
}

// Label is a shorthand for Variable(code).Label.
func (m *Metadata) Label(code string) string { return m.Variable(code).Label }

// ScaleKind classifies 5-point scale questions.
type ScaleKind int

const (
	ScaleNone ScaleKind = iota
	ScaleRegular
	ScaleInverted
	ScaleJustRight
)

func (k ScaleKind) String() string {
	switch k {
	case ScaleRegular:
		return "regular"
	case ScaleInverted:
		return "inverted"
	case ScaleJustRight:
		return "just_right"
	default:
		return "none"
	}
}

// ScaleKeywords are deployment-specific keyword lists used to classify scales.
type ScaleKeywords struct {
	JustRight []string `mapstructure:"just_right" yaml:"just_right"`
	Inverted  []string `mapstructure:"inverted" yaml:"inverted"`
}

// DefaultScaleKeywords returns the keywords used when none are configured.
func DefaultScaleKeywords() ScaleKeywords {
	return ScaleKeywords{JustRight: []string{"justo", "just right"}}
}

// Scale classifies code. Only 5-entry value maps are scales; just-right wins
// over inverted.
func (m *Metadata) Scale(code string, kw ScaleKeywords) ScaleKind {
	vm := m.Variable(code).Values
	if vm.Len() != 5 {
		return ScaleNone
	}
	labels := vm.Labels()
	if anyContainsFold(labels, kw.JustRight) {
		return ScaleJustRight
	}
	if anyContainsFold(labels, kw.Inverted) {
		return ScaleInverted
	}
	return ScaleRegular
}

func anyContainsFold(labels, keywords []string) bool {
	for _, kw := range keywords {
		k := strings.ToLower(strings.TrimSpace(kw))
		if k == "" {
			continue
		}
		for _, l := range labels {
			if strings.Contains(strings.ToLower(l), k) {
				return true
			}
		}
	}
	return false
}
