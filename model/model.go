package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNoBarangayField is a schema-integrity fault: every field schema must
// declare exactly one field whose name contains "barangay".
var ErrNoBarangayField = errors.New("schema declares no barangay field")

// ErrNotRegistered marks a citizen who has no full record yet (convert and
// edit workflows).
var ErrNotRegistered = errors.New("citizen is not registered")

type FieldType string

const (
	TypeText     FieldType = "text"
	TypeNumber   FieldType = "number"
	TypeDate     FieldType = "date"
	TypeTextarea FieldType = "textarea"
	TypeSelect   FieldType = "select"
	TypeRadio    FieldType = "radio"
	TypeCheckbox FieldType = "checkbox"
)

func (t FieldType) Valid() bool {
	switch t {
	case TypeText, TypeNumber, TypeDate, TypeTextarea, TypeSelect, TypeRadio, TypeCheckbox:
		return true
	}
	return false
}

func (t *FieldType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	ft := FieldType(s)
	if !ft.Valid() {
		return fmt.Errorf("unknown field type %q", s)
	}
	*t = ft
	return nil
}

// FieldDescriptor is one configurable input slot of the registration form.
// The backend owns these; the console only consumes them.
type FieldDescriptor struct {
	ID       int       `json:"id"`
	Name     string    `json:"field_name"`
	Label    string    `json:"label"`
	Type     FieldType `json:"type"`
	Group    string    `json:"group"`
	Order    int       `json:"order"`
	Required bool      `json:"required"`
	Options  string    `json:"options"`
}

// OptionList splits the backend's comma-separated option string, trimming
// surrounding whitespace and dropping empty entries.
func (f FieldDescriptor) OptionList() []string {
	return SplitChecklist(f.Options)
}

// IsBarangay reports whether this field is the cross-referenced barangay
// select, matched case-insensitively on the field name.
func (f FieldDescriptor) IsBarangay() bool {
	return strings.Contains(strings.ToLower(f.Name), "barangay")
}

// BarangayField returns the schema's barangay field. Its absence is a
// schema-integrity fault that fails any commit.
func BarangayField(fields []FieldDescriptor) (FieldDescriptor, error) {
	for _, f := range fields {
		if f.IsBarangay() {
			return f, nil
		}
	}
	return FieldDescriptor{}, ErrNoBarangayField
}

type GroupDescriptor struct {
	Key   string `json:"group_key"`
	Label string `json:"group_label"`
}

type Barangay struct {
	ID   int    `json:"id"`
	Name string `json:"barangay_name"`
}

// SystemDefaults is the read-only, session-scoped snapshot of system
// settings used to pre-fill fixed address fields.
type SystemDefaults struct {
	Municipality string `json:"municipality"`
	Province     string `json:"province"`
}

/// SeniorRecord is the persisted citizen shape: fixed columns plus the
// form_data blob holding every schema-driven value keyed by field name.
type SeniorRecord struct {
	ID           int             `json:"id"`
	FirstName    string          `json:"firstName"`
	MiddleName   string          `json:"middleName"`
	LastName     string          `json:"lastName"`
	Suffix       string          `json:"suffix"`
	BarangayID   int             `json:"barangay_id"`
	DocumentType string          `json:"documentType"`
	PhotoURL     string          `json:"photo"`
	DocumentURL  string          `json:"document"`
	FormData     json.RawMessage `json:"form_data"`
}

// DecodeFormData parses the form_data blob, tolerating both an embedded JSON
// object and a doubly-encoded JSON string (older records store the latter).
func (r SeniorRecord) DecodeFormData() (map[string]any, error) {
	data := map[string]any{}
	if len(r.FormData) == 0 || string(r.FormData) == "null" {
		return data, nil
	}
	if err := json.Unmarshal(r.FormData, &data); err == nil {
		return data, nil
	}
	var s string
	if err := json.Unmarshal(r.FormData, &s); err != nil {
		return nil, fmt.Errorf("form_data is neither object nor string: %w", err)
	}
	if s == "" {
		return data, nil
	}
	if err := json.Unmarshal([]byte(s), &data); err != nil {
		return nil, fmt.Errorf("form_data string payload: %w", err)
	}
	return data, nil
}

// Upload is an in-memory file attached to a submission before commit.
type Upload struct {
	Filename    string
	ContentType string
	Content     []byte
}

// SplitChecklist reverses JoinChecklist: split on commas, trim each token,
// drop empties. This and JoinChecklist are the only conversion points
// between the stored comma string and the in-memory selection set.
func SplitChecklist(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

// JoinChecklist flattens a selection into the persisted comma string.
func JoinChecklist(selected []string) string {
	return strings.Join(selected, ", ")
}

// CoerceString renders a decoded form_data value the way a form control
// holds it: numbers without a float suffix, nil as empty.
func CoerceString(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}
