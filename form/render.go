package form

import (
	"sort"
	"strconv"

	"github.com/rgaviola/osca-forms/model"
)

// RefData is the session's snapshot of the barangay directory. Failed gates
// only the barangay control; the rest of the form stays editable. The flag
// is settled before the first render, at session start.
type RefData struct {
	Barangays []model.Barangay
	Failed    bool
}

// GroupView is one collapsible section of the rendered form.
type GroupView struct {
	Key       string
	Label     string
	Collapsed bool
	Fields    []FieldView
}

// FieldView is one input control, fully resolved against the current state:
// what to draw, its current value, and its option rows where applicable.
type FieldView struct {
	Name     string
	Label    string
	Type     model.FieldType
	Required bool
	ReadOnly bool
	Disabled bool
	Value    string
	Sentinel string       // select placeholder row, "" for other types
	Options  []OptionView // select, radio, checkbox
}

type OptionView struct {
	Value    string
	Label    string
	Selected bool
}

// BuildForm partitions the schema into its groups and resolves every field
// against the live state. Groups with no matching fields are skipped
// entirely. Within a group, fields render in ascending schema order.
func BuildForm(fields []model.FieldDescriptor, groups []model.GroupDescriptor, st *State, ref RefData) []GroupView {
	byGroup := map[string][]model.FieldDescriptor{}
	for _, f := range fields {
		byGroup[f.Group] = append(byGroup[f.Group], f)
	}

	var views []GroupView
	for _, g := range groups {
		members := byGroup[g.Key]
		if len(members) == 0 {
			continue
		}
		sort.SliceStable(members, func(i, j int) bool {
			return members[i].Order < members[j].Order
		})

		view := GroupView{
			Key:       g.Key,
			Label:     g.Label,
			Collapsed: st.Collapsed(g.Key),
		}
		for _, f := range members {
			view.Fields = append(view.Fields, buildField(f, st, ref))
		}
		views = append(views, view)
	}
	return views
}

func buildField(f model.FieldDescriptor, st *State, ref RefData) FieldView {
	// The barangay control is special-cased ahead of the type dispatch: its
	// options come from the barangay directory, not from the schema.
	if f.IsBarangay() {
		return barangayField(f, st, ref)
	}

	view := FieldView{
		Name:     f.Name,
		Label:    f.Label,
		Type:     f.Type,
		Required: f.Required,
	}

	switch f.Type {
	case model.TypeSelect:
		view.Value = st.Scalar(f.Name)
		view.Sentinel = "Select " + f.Label
		for _, opt := range f.OptionList() {
			view.Options = append(view.Options, OptionView{
				Value:    opt,
				Label:    opt,
				Selected: opt == view.Value,
			})
		}
	case model.TypeRadio:
		view.Value = st.Scalar(f.Name)
		for _, opt := range f.OptionList() {
			view.Options = append(view.Options, OptionView{
				Value:    opt,
				Label:    opt,
				Selected: opt == view.Value,
			})
		}
	case model.TypeCheckbox:
		selection := st.Checklist(f.Name)
		for _, opt := range f.OptionList() {
			view.Options = append(view.Options, OptionView{
				Value:    opt,
				Label:    opt,
				Selected: selection.Has(opt),
			})
		}
	default:
		// text, number, date, textarea
		view.Value = st.Scalar(f.Name)
		if f.Name == fieldAge {
			view.ReadOnly = true
		}
	}
	return view
}

func barangayField(f model.FieldDescriptor, st *State, ref RefData) FieldView {
	view := FieldView{
		Name:     f.Name,
		Label:    f.Label,
		Type:     model.TypeSelect,
		Required: f.Required,
		Disabled: ref.Failed,
		Value:    st.Scalar(f.Name),
		Sentinel: "Select " + f.Label,
	}
	for _, b := range ref.Barangays {
		id := strconv.Itoa(b.ID)
		view.Options = append(view.Options, OptionView{
			Value:    id,
			Label:    b.Name,
			Selected: id == view.Value,
		})
	}
	return view
}
