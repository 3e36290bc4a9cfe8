package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/rgaviola/osca-forms/model"
)

// Error carries a structured {message} rejection from the backend; its
// message is surfaced to the user verbatim.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return http.StatusText(e.Status)
}

// Client talks to the OSCA backend REST API. The console holds no
// credentials of its own; the caller's session cookie is forwarded verbatim.
type Client struct {
	base   string
	http   *http.Client
	cookie string
}

func New(baseURL string) *Client {
	return &Client{
		base: baseURL,
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

// ForRequest returns a client scoped to one inbound request, carrying its
// Cookie header onto every backend call.
func (c *Client) ForRequest(r *http.Request) *Client {
	scoped := *c
	scoped.cookie = r.Header.Get("Cookie")
	return &scoped
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, err
	}
	if c.cookie != "" {
		req.Header.Set("Cookie", c.cookie)
	}
	return req, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	apiErr := &Error{Status: resp.StatusCode}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err == nil {
		var payload struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &payload) == nil {
			apiErr.Message = payload.Message
		}
	}
	return apiErr
}

func (c *Client) Fields(ctx context.Context) ([]model.FieldDescriptor, error) {
	var fields []model.FieldDescriptor
	if err := c.getJSON(ctx, "/form-fields", &fields); err != nil {
		return nil, fmt.Errorf("fetch form fields: %w", err)
	}
	return fields, nil
}

func (c *Client) Groups(ctx context.Context) ([]model.GroupDescriptor, error) {
	var groups []model.GroupDescriptor
	if err := c.getJSON(ctx, "/form-groups", &groups); err != nil {
		return nil, fmt.Errorf("fetch form groups: %w", err)
	}
	return groups, nil
}

func (c *Client) Barangays(ctx context.Context) ([]model.Barangay, error) {
	var barangays []model.Barangay
	if err := c.getJSON(ctx, "/barangays", &barangays); err != nil {
		return nil, fmt.Errorf("fetch barangays: %w", err)
	}
	return barangays, nil
}

func (c *Client) SystemDefaults(ctx context.Context) (model.SystemDefaults, error) {
	var defaults model.SystemDefaults
	if err := c.getJSON(ctx, "/settings", &defaults); err != nil {
		return model.SystemDefaults{}, fmt.Errorf("fetch system defaults: %w", err)
	}
	return defaults, nil
}

// Senior fetches one citizen record. A missing record, an empty payload or a
// payload without an id all signal model.ErrNotRegistered.
func (c *Client) Senior(ctx context.Context, id string) (model.SeniorRecord, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/seniors/"+id, nil)
	if err != nil {
		return model.SeniorRecord{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return model.SeniorRecord{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return model.SeniorRecord{}, model.ErrNotRegistered
	}
	if resp.StatusCode != http.StatusOK {
		return model.SeniorRecord{}, decodeError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.SeniorRecord{}, err
	}
	if len(bytes.TrimSpace(body)) == 0 || string(bytes.TrimSpace(body)) == "null" {
		return model.SeniorRecord{}, model.ErrNotRegistered
	}

	var record model.SeniorRecord
	if err := json.Unmarshal(body, &record); err != nil {
		return model.SeniorRecord{}, fmt.Errorf("decode senior record: %w", err)
	}
	if record.ID == 0 {
		return model.SeniorRecord{}, model.ErrNotRegistered
	}
	return record, nil
}

// Submission is the wire shape of a committed form: fixed name columns,
// the resolved barangay id, the JSON-serialized form_data remainder, and the
// optional upload pair.
type Submission struct {
	FirstName    string
	MiddleName   string
	LastName     string
	Suffix       string
	BarangayID   int
	FormData     map[string]string
	DocumentType string
	DocumentFile *model.Upload
	PhotoFile    *model.Upload
}

func (c *Client) CreateSenior(ctx context.Context, sub Submission) error {
	return c.submit(ctx, http.MethodPost, "/seniors", sub)
}

func (c *Client) UpdateSenior(ctx context.Context, id string, sub Submission) error {
	return c.submit(ctx, http.MethodPut, "/seniors/"+id, sub)
}

// RegisterApplicant converts an unregistered applicant into a full record.
func (c *Client) RegisterApplicant(ctx context.Context, id string, sub Submission) error {
	return c.submit(ctx, http.MethodPost, "/applicants/"+id+"/register", sub)
}

// SelfRegister is the public self-service registration endpoint.
func (c *Client) SelfRegister(ctx context.Context, sub Submission) error {
	return c.submit(ctx, http.MethodPost, "/register", sub)
}

func (c *Client) submit(ctx context.Context, method, path string, sub Submission) error {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)

	formData, err := json.Marshal(sub.FormData)
	if err != nil {
		return fmt.Errorf("serialize form_data: %w", err)
	}

	parts := []struct{ name, value string }{
		{"firstName", sub.FirstName},
		{"middleName", sub.MiddleName},
		{"lastName", sub.LastName},
		{"suffix", sub.Suffix},
		{"barangay_id", strconv.Itoa(sub.BarangayID)},
		{"form_data", string(formData)},
		{"documentType", sub.DocumentType},
	}
	for _, p := range parts {
		if err := mw.WriteField(p.name, p.value); err != nil {
			return err
		}
	}
	if err := writeFile(mw, "documentFile", sub.DocumentFile); err != nil {
		return err
	}
	if err := writeFile(mw, "photoFile", sub.PhotoFile); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

func writeFile(mw *multipart.Writer, field string, up *model.Upload) error {
	if up == nil {
		return nil
	}
	part, err := mw.CreateFormFile(field, up.Filename)
	if err != nil {
		return err
	}
	_, err = part.Write(up.Content)
	return err
}
