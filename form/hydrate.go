package form

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rgaviola/osca-forms/model"
)

// Fixed persistence columns; read from the record top level, never from the
// form_data blob.
var fixedColumns = map[string]bool{
	"firstName":  true,
	"middleName": true,
	"lastName":   true,
	"suffix":     true,
}

// Strategy populates a fresh State from the current field schema. One
// strategy runs exactly once per session, at session start.
type Strategy interface {
	Hydrate(st *State, fields []model.FieldDescriptor) error
}

// Blank starts an empty form for new registrations, pre-filling the
// municipality and province fields from the session's settings snapshot.
type Blank struct {
	Defaults model.SystemDefaults
}

func (b Blank) Hydrate(st *State, fields []model.FieldDescriptor) error {
	for _, f := range fields {
		name := strings.ToLower(f.Name)
		switch {
		case f.Type == model.TypeCheckbox:
			st.set(f.Name, Checklist{})
		case strings.Contains(name, "municipal"):
			st.SetScalar(f.Name, b.Defaults.Municipality)
		case strings.Contains(name, "province"):
			st.SetScalar(f.Name, b.Defaults.Province)
		default:
			st.SetScalar(f.Name, "")
		}
	}
	st.SetScalar(FieldDocumentType, "")
	return nil
}

// FromRecord rebuilds the buffer of an existing record for editing,
// reversing the checkbox flattening done at its last submission.
type FromRecord struct {
	Record model.SeniorRecord
}

func (h FromRecord) Hydrate(st *State, fields []model.FieldDescriptor) error {
	data, err := h.Record.DecodeFormData()
	if err != nil {
		return fmt.Errorf("hydrate record %d: %w", h.Record.ID, err)
	}

	for _, f := range fields {
		switch {
		case fixedColumns[f.Name]:
			st.SetScalar(f.Name, h.fixedColumn(f.Name))
		case f.IsBarangay():
			st.SetScalar(f.Name, h.barangayValue(f.Name, data))
		case f.Type == model.TypeCheckbox:
			st.set(f.Name, checklistFrom(data[f.Name]))
		default:
			st.SetScalar(f.Name, model.CoerceString(data[f.Name]))
		}
	}
	st.SetScalar(FieldDocumentType, h.Record.DocumentType)
	return nil
}

func (h FromRecord) fixedColumn(name string) string {
	switch name {
	case "firstName":
		return h.Record.FirstName
	case "middleName":
		return h.Record.MiddleName
	case "lastName":
		return h.Record.LastName
	case "suffix":
		return h.Record.Suffix
	}
	return ""
}

// barangayValue resolves the initial barangay selection. The fallback chain
// (schema field name in form_data, then a flat barangay_id in form_data,
// then the top-level column) covers records written under older schema
// shapes and must not be shortened.
func (h FromRecord) barangayValue(fieldName string, data map[string]any) string {
	if v, ok := data[fieldName]; ok && model.CoerceString(v) != "" {
		return model.CoerceString(v)
	}
	if v, ok := data["barangay_id"]; ok && model.CoerceString(v) != "" {
		return model.CoerceString(v)
	}
	if h.Record.BarangayID != 0 {
		return strconv.Itoa(h.Record.BarangayID)
	}
	return ""
}

func checklistFrom(v any) Checklist {
	c := Checklist{}
	switch v := v.(type) {
	case string:
		for _, opt := range model.SplitChecklist(v) {
			c[opt] = struct{}{}
		}
	case []any:
		for _, item := range v {
			if opt := model.CoerceString(item); opt != "" {
				c[opt] = struct{}{}
			}
		}
	}
	return c
}

// Convert hydrates the applicant-conversion workflow. An absent or id-less
// record is not an error; it short-circuits to the not-registered terminal
// page without building any form state.
type Convert struct {
	Record model.SeniorRecord
}

func (c Convert) Hydrate(st *State, fields []model.FieldDescriptor) error {
	if c.Record.ID == 0 {
		return model.ErrNotRegistered
	}
	return FromRecord{Record: c.Record}.Hydrate(st, fields)
}
