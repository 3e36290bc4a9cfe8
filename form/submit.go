package form

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/rgaviola/osca-forms/api"
	"github.com/rgaviola/osca-forms/model"
)

// ErrCommitInFlight guards against double submission: at most one commit may
// be outstanding per session, with no queuing and no retry.
var ErrCommitInFlight = errors.New("a submission is already in progress")

// ValidationError reports the required fields still empty at propose time.
type ValidationError struct {
	Missing []string // field labels, in schema order
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%d required fields are missing", len(e.Missing))
}

// ValidateRequired checks every required schema field for a value. It runs
// before the confirmation step so that an incomplete form never reaches the
// backend.
func ValidateRequired(fields []model.FieldDescriptor, st *State) error {
	var missing []string
	for _, f := range fields {
		if !f.Required {
			continue
		}
		v := st.Value(f.Name)
		if v == nil || v.Empty() {
			missing = append(missing, f.Label)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}

// Assemble converts the edit buffer into the wire shape: the four fixed name
// columns, the barangay selection hoisted out of the dynamic remainder as a
// numeric barangay_id, and everything else flattened into form_data with
// checkbox selections joined back to comma strings.
func Assemble(fields []model.FieldDescriptor, st *State) (api.Submission, error) {
	bf, err := model.BarangayField(fields)
	if err != nil {
		return api.Submission{}, err
	}

	barangayID, err := strconv.Atoi(st.Scalar(bf.Name))
	if err != nil {
		return api.Submission{}, fmt.Errorf("barangay selection %q is not an id", st.Scalar(bf.Name))
	}

	optionOrder := map[string][]string{}
	for _, f := range fields {
		if f.Type == model.TypeCheckbox {
			optionOrder[f.Name] = f.OptionList()
		}
	}

	sub := api.Submission{
		FirstName:    st.Scalar("firstName"),
		MiddleName:   st.Scalar("middleName"),
		LastName:     st.Scalar("lastName"),
		Suffix:       st.Scalar("suffix"),
		BarangayID:   barangayID,
		FormData:     map[string]string{},
		DocumentType: st.Scalar(FieldDocumentType),
		DocumentFile: st.FileValue(FieldDocumentFile),
		PhotoFile:    st.FileValue(FieldPhotoFile),
	}

	for _, name := range st.Names() {
		if fixedColumns[name] || name == bf.Name ||
			name == FieldDocumentType || name == FieldDocumentFile || name == FieldPhotoFile {
			continue
		}
		switch v := st.Value(name).(type) {
		case Scalar:
			sub.FormData[name] = string(v)
		case Checklist:
			sub.FormData[name] = model.JoinChecklist(v.Selected(optionOrder[name]))
		}
	}
	return sub, nil
}
