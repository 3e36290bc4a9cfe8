package routes

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rgaviola/osca-forms/api"
	"github.com/rgaviola/osca-forms/app"
	"github.com/rgaviola/osca-forms/config"
	"github.com/rgaviola/osca-forms/form"
	"github.com/rgaviola/osca-forms/model"
)

type fakeOSCA struct {
	mu      sync.Mutex
	commits []url.Values

	barangaysFail bool
	senior        *model.SeniorRecord
}

// newBackend serves the OSCA API surface the console consumes.
func newBackend(t *testing.T) (*httptest.Server, *fakeOSCA) {
	t.Helper()
	state := &fakeOSCA{}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /form-fields", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]model.FieldDescriptor{
			{ID: 1, Name: "firstName", Label: "First Name", Type: model.TypeText, Group: "identity", Order: 1, Required: true},
			{ID: 2, Name: "lastName", Label: "Last Name", Type: model.TypeText, Group: "identity", Order: 2, Required: true},
			{ID: 3, Name: "birthdate", Label: "Birthdate", Type: model.TypeDate, Group: "identity", Order: 3},
			{ID: 4, Name: "age", Label: "Age", Type: model.TypeNumber, Group: "identity", Order: 4},
			{ID: 5, Name: "barangay", Label: "Barangay", Type: model.TypeSelect, Group: "address", Order: 1, Required: true},
			{ID: 6, Name: "conditions", Label: "Health Conditions", Type: model.TypeCheckbox, Group: "health", Order: 1,
				Options: "Diabetic, Hypertensive"},
		})
	})
	mux.HandleFunc("GET /form-groups", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]model.GroupDescriptor{
			{Key: "identity", Label: "Personal Information"},
			{Key: "address", Label: "Address"},
			{Key: "health", Label: "Health Profile"},
			{Key: "livelihood", Label: "Livelihood"},
		})
	})
	mux.HandleFunc("GET /barangays", func(w http.ResponseWriter, r *http.Request) {
		if state.barangaysFail {
			http.Error(w, `{"message":"barangay service unavailable"}`, http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode([]model.Barangay{{ID: 3, Name: "Apokon"}})
	})
	mux.HandleFunc("GET /settings", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(model.SystemDefaults{Municipality: "Tagum", Province: "Davao del Norte"})
	})
	mux.HandleFunc("GET /seniors/{id}", func(w http.ResponseWriter, r *http.Request) {
		if state.senior == nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(state.senior)
	})
	record := func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		state.mu.Lock()
		state.commits = append(state.commits, url.Values(r.MultipartForm.Value))
		state.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	}
	mux.HandleFunc("POST /seniors", record)
	mux.HandleFunc("PUT /seniors/{id}", record)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, state
}

func newConsole(t *testing.T) (http.Handler, app.App, *fakeOSCA) {
	t.Helper()
	backend, state := newBackend(t)
	a := app.App{
		Client:   api.New(backend.URL),
		Sessions: form.NewStore(),
		Config:   config.Config{APIUrl: backend.URL, LoginUrl: backend.URL + "/login"},
	}
	return Wire(a), a, state
}

func staffGet(handler http.Handler, path string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodGet, path, nil)
	r.AddCookie(&http.Cookie{Name: "osca_session", Value: "abc"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	return w
}

func TestStaffPagesNeedSession(t *testing.T) {
	handler, _, _ := newConsole(t)

	r := httptest.NewRequest(http.MethodGet, "/seniors/new", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
	assert.Contains(t, w.Header().Get("location"), "/login?goto=")
}

func TestOpenAndShowForm(t *testing.T) {
	handler, _, _ := newConsole(t)

	w := staffGet(handler, "/seniors/new")
	require.Equal(t, http.StatusSeeOther, w.Code)
	location := w.Header().Get("Location")
	require.Regexp(t, `^/forms/`, location)

	w = staffGet(handler, location+"/")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()

	assert.Contains(t, body, "First Name")
	assert.Contains(t, body, "Personal Information")
	assert.Contains(t, body, "Apokon")
	// a group with no fields does not render at all
	assert.NotContains(t, body, "Livelihood")
}

func TestConvertNotRegisteredTerminalPage(t *testing.T) {
	handler, _, _ := newConsole(t)

	w := staffGet(handler, "/applicants/99/convert")
	require.Equal(t, http.StatusSeeOther, w.Code)

	w = staffGet(handler, w.Header().Get("Location")+"/")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Not Registered Yet")
	// no form was rendered
	assert.NotContains(t, w.Body.String(), "name=\"firstName\"")
}

var tokenPattern = regexp.MustCompile(`name="token" value="([^"]+)"`)

func multipartBody(t *testing.T, values map[string][]string) (io.Reader, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for name, vs := range values {
		for _, v := range vs {
			require.NoError(t, mw.WriteField(name, v))
		}
	}
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func TestProposeAndCommit(t *testing.T) {
	handler, _, state := newConsole(t)

	w := staffGet(handler, "/seniors/new")
	require.Equal(t, http.StatusSeeOther, w.Code)
	formPath := w.Header().Get("Location")

	body, contentType := multipartBody(t, map[string][]string{
		"firstName":  {"Juan"},
		"lastName":   {"Dela Cruz"},
		"birthdate":  {"1950-06-01"},
		"barangay":   {"3"},
		"conditions": {"Diabetic", "Hypertensive"},
	})
	r := httptest.NewRequest(http.MethodPost, formPath+"/", body)
	r.Header.Set("Content-Type", contentType)
	r.AddCookie(&http.Cookie{Name: "osca_session", Value: "abc"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Juan Dela Cruz")
	match := tokenPattern.FindStringSubmatch(rec.Body.String())
	require.Len(t, match, 2, "confirmation page carries a token")
	// propose sent nothing to the backend yet
	assert.Empty(t, state.commits)

	commitBody, commitType := multipartBody(t, map[string][]string{"token": {match[1]}})
	r = httptest.NewRequest(http.MethodPost, formPath+"/commit", commitBody)
	r.Header.Set("Content-Type", commitType)
	r.AddCookie(&http.Cookie{Name: "osca_session", Value: "abc"})
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, r)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Record saved successfully")

	state.mu.Lock()
	defer state.mu.Unlock()
	require.Len(t, state.commits, 1)
	committed := state.commits[0]
	assert.Equal(t, "Juan", committed.Get("firstName"))
	assert.Equal(t, "3", committed.Get("barangay_id"))

	var formData map[string]string
	require.NoError(t, json.Unmarshal([]byte(committed.Get("form_data")), &formData))
	assert.Equal(t, "Diabetic, Hypertensive", formData["conditions"])
	assert.NotContains(t, formData, "firstName")
	assert.NotContains(t, formData, "barangay")
}

func TestProposeMissingRequiredFields(t *testing.T) {
	handler, _, state := newConsole(t)

	w := staffGet(handler, "/seniors/new")
	formPath := w.Header().Get("Location")

	body, contentType := multipartBody(t, map[string][]string{"firstName": {"Juan"}})
	r := httptest.NewRequest(http.MethodPost, formPath+"/", body)
	r.Header.Set("Content-Type", contentType)
	r.AddCookie(&http.Cookie{Name: "osca_session", Value: "abc"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Last Name is required.")
	assert.Empty(t, state.commits)
}

func TestCommitKeepsBarangayWhenLookupDegraded(t *testing.T) {
	handler, _, state := newConsole(t)
	state.barangaysFail = true
	state.senior = &model.SeniorRecord{
		ID:         7,
		FirstName:  "Maria",
		LastName:   "Santos",
		BarangayID: 3,
		FormData:   json.RawMessage(`{"conditions":"Diabetic"}`),
	}

	w := staffGet(handler, "/seniors/7/edit")
	require.Equal(t, http.StatusSeeOther, w.Code)
	formPath := w.Header().Get("Location")

	// the disabled barangay select posts nothing, so the key is absent here
	body, contentType := multipartBody(t, map[string][]string{
		"firstName": {"Maria"},
		"lastName":  {"Santos-Reyes"},
	})
	r := httptest.NewRequest(http.MethodPost, formPath+"/", body)
	r.Header.Set("Content-Type", contentType)
	r.AddCookie(&http.Cookie{Name: "osca_session", Value: "abc"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)

	require.Equal(t, http.StatusOK, rec.Code)
	match := tokenPattern.FindStringSubmatch(rec.Body.String())
	require.Len(t, match, 2, "hydrated barangay satisfies the required check")

	commitBody, commitType := multipartBody(t, map[string][]string{"token": {match[1]}})
	r = httptest.NewRequest(http.MethodPost, formPath+"/commit", commitBody)
	r.Header.Set("Content-Type", commitType)
	r.AddCookie(&http.Cookie{Name: "osca_session", Value: "abc"})
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	require.Equal(t, http.StatusOK, rec.Code)

	state.mu.Lock()
	defer state.mu.Unlock()
	require.Len(t, state.commits, 1)
	assert.Equal(t, "3", state.commits[0].Get("barangay_id"))
	assert.Equal(t, "Santos-Reyes", state.commits[0].Get("lastName"))
}

func TestUpdateFieldValueDerivesAge(t *testing.T) {
	handler, a, _ := newConsole(t)

	w := staffGet(handler, "/seniors/new")
	formPath := w.Header().Get("Location")
	sid := formPath[len("/forms/"):]

	payload := bytes.NewBufferString(`{"field":"birthdate","value":"1950-06-01"}`)
	r := httptest.NewRequest(http.MethodPost, formPath+"/values", payload)
	r.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["age"])

	s, ok := a.Sessions.Get(sid)
	require.True(t, ok)
	assert.Equal(t, resp["age"], s.State.Scalar("age"))
}

func TestUpdateFieldValueRejectsDerivedAge(t *testing.T) {
	handler, a, _ := newConsole(t)

	w := staffGet(handler, "/seniors/new")
	formPath := w.Header().Get("Location")
	sid := formPath[len("/forms/"):]

	s, ok := a.Sessions.Get(sid)
	require.True(t, ok)
	s.State.SetDate("birthdate", "1950-06-01")
	derived := s.State.Scalar("age")
	require.NotEmpty(t, derived)

	payload := bytes.NewBufferString(`{"field":"age","value":"99"}`)
	r := httptest.NewRequest(http.MethodPost, formPath+"/values", payload)
	r.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, derived, s.State.Scalar("age"))
}
