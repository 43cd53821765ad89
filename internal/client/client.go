package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Nisarg2003/real-tractors-and-equipments/internal/models"
)

// ErrNotLoggedIn is returned by admin calls made without a session token.
var ErrNotLoggedIn = errors.New("not logged in")

// APIError is a non-2xx reply from the server.
type APIError struct {
	StatusCode      int
	Message         string
	CaptchaRequired bool
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// Client talks to the marketplace API on behalf of one browser-like user.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	session     *Session
	sessionPath string
	fingerprint string

	mu         sync.Mutex
	humanToken string
	challenge  string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithSessionFile makes Login and Logout persist the session at path.
func WithSessionFile(path string) Option {
	return func(c *Client) { c.sessionPath = path }
}

// WithFingerprint sets the browser fingerprint sent as X-BFP.
func WithFingerprint(fp string) Option {
	return func(c *Client) { c.fingerprint = fp }
}

// New creates a client for baseURL (e.g. "http://localhost:8080").
// A nil session starts logged out.
func New(baseURL string, session *Session, opts ...Option) *Client {
	if session == nil {
		session = &Session{}
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		session:    session,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Session returns the live session.
func (c *Client) Session() *Session {
	return c.session
}

// SetCaptchaChallenge attaches a solved Turnstile challenge to the next
// request. The server answers with a human token that later requests reuse.
func (c *Client) SetCaptchaChallenge(challenge string) {
	c.mu.Lock()
	c.challenge = challenge
	c.mu.Unlock()
}

type request struct {
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
	auth        bool
}

func (c *Client) do(ctx context.Context, r request, out any) error {
	if r.auth && !c.session.Authenticated() {
		return ErrNotLoggedIn
	}

	u := c.baseURL + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, r.method, u, r.body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if r.auth {
		req.Header.Set("Authorization", "Bearer "+c.session.Token)
	}
	if c.fingerprint != "" {
		req.Header.Set("X-BFP", c.fingerprint)
	}
	c.mu.Lock()
	if c.humanToken != "" {
		req.Header.Set("X-C-T", c.humanToken)
	}
	if c.challenge != "" {
		req.Header.Set("X-C-V", c.challenge)
		c.challenge = ""
	}
	c.mu.Unlock()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", r.method, r.path, err)
	}
	defer resp.Body.Close()

	if token := resp.Header.Get("X-C-T"); token != "" {
		c.mu.Lock()
		c.humanToken = token
		c.mu.Unlock()
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var body struct {
			Error           string `json:"error"`
			CaptchaRequired bool   `json:"captcha_required"`
		}
		if json.Unmarshal(data, &body) == nil && body.Error != "" {
			apiErr.Message = body.Error
			apiErr.CaptchaRequired = body.CaptchaRequired
		} else {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		// An expired token is a logged-out session.
		if r.auth && resp.StatusCode == http.StatusUnauthorized {
			if err := c.session.Clear(c.sessionPath); err != nil {
				return errors.Join(apiErr, err)
			}
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", r.method, r.path, err)
	}
	return nil
}

func jsonRequest(method, path string, payload any) (request, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return request{}, fmt.Errorf("encode request: %w", err)
	}
	return request{method: method, path: path, body: bytes.NewReader(data), contentType: "application/json"}, nil
}

// Ping checks that the API is up.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, request{method: http.MethodGet, path: "/api/ping"}, nil)
}

// --- Catalog ---

// ListListings returns every listing, newest first.
func (c *Client) ListListings(ctx context.Context) ([]models.Listing, error) {
	var out []models.Listing
	err := c.do(ctx, request{method: http.MethodGet, path: "/api/getAllPost"}, &out)
	return out, err
}

// ListingsByCategory returns the listings in any of categories. No
// categories means every listing.
func (c *Client) ListingsByCategory(ctx context.Context, categories ...string) ([]models.Listing, error) {
	if categories == nil {
		categories = []string{}
	}
	req, err := jsonRequest(http.MethodPost, "/api/postByCategory", map[string][]string{"categories": categories})
	if err != nil {
		return nil, err
	}
	var out []models.Listing
	err = c.do(ctx, req, &out)
	return out, err
}

// GetListing fetches one listing.
func (c *Client) GetListing(ctx context.Context, id string) (*models.Listing, error) {
	var out models.Listing
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/postById/" + url.PathEscape(id)}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CategoryCounts returns the number of listings per category.
func (c *Client) CategoryCounts(ctx context.Context) ([]models.CategoryCount, error) {
	var out []models.CategoryCount
	err := c.do(ctx, request{method: http.MethodGet, path: "/api/getCategories"}, &out)
	return out, err
}

// File is an image attached to a listing form.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// ListingFields are the text fields of a listing form. Nil fields are not
// sent; on edit a pointer to "" clears the field.
type ListingFields struct {
	Make               *string
	Model              *string
	Year               *string
	RegistrationNumber *string
	Category           *string
	Description        *string
	Price              *string
	IsAvailable        *bool
}

// String returns a pointer to s, for ListingFields.
func String(s string) *string { return &s }

// Bool returns a pointer to b, for ListingFields.
func Bool(b bool) *bool { return &b }

func (f ListingFields) write(w *multipart.Writer) error {
	fields := []struct {
		name  string
		value *string
	}{
		{"make", f.Make},
		{"model", f.Model},
		{"year", f.Year},
		{"registrationNumber", f.RegistrationNumber},
		{"category", f.Category},
		{"description", f.Description},
		{"price", f.Price},
	}
	for _, field := range fields {
		if field.value == nil {
			continue
		}
		if err := w.WriteField(field.name, *field.value); err != nil {
			return err
		}
	}
	if f.IsAvailable != nil {
		return w.WriteField("isAvailable", strconv.FormatBool(*f.IsAvailable))
	}
	return nil
}

func writeFile(w *multipart.Writer, field string, f File) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, field, strings.ReplaceAll(f.Name, `"`, "")))
	ct := f.ContentType
	if ct == "" {
		ct = http.DetectContentType(f.Data)
	}
	h.Set("Content-Type", ct)
	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = part.Write(f.Data)
	return err
}

func listingForm(fields ListingFields, thumbnail *File, photos []File) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	if err := fields.write(w); err != nil {
		return nil, "", fmt.Errorf("write form fields: %w", err)
	}
	if thumbnail != nil {
		if err := writeFile(w, "thumbnail", *thumbnail); err != nil {
			return nil, "", fmt.Errorf("attach thumbnail: %w", err)
		}
	}
	for _, p := range photos {
		if err := writeFile(w, "photos", p); err != nil {
			return nil, "", fmt.Errorf("attach photo %s: %w", p.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return body, w.FormDataContentType(), nil
}

// CreateListing submits a new listing. Requires a session.
func (c *Client) CreateListing(ctx context.Context, fields ListingFields, thumbnail File, photos []File) (*models.Listing, error) {
	body, ct, err := listingForm(fields, &thumbnail, photos)
	if err != nil {
		return nil, err
	}
	var out models.Listing
	if err := c.do(ctx, request{method: http.MethodPost, path: "/api/createPost", body: body, contentType: ct, auth: true}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// EditListing applies a partial edit. A non-nil thumbnail replaces the
// current one; photos are appended. Requires a session.
func (c *Client) EditListing(ctx context.Context, id string, fields ListingFields, thumbnail *File, photos []File) (*models.Listing, error) {
	body, ct, err := listingForm(fields, thumbnail, photos)
	if err != nil {
		return nil, err
	}
	var out models.Listing
	if err := c.do(ctx, request{method: http.MethodPut, path: "/api/editPost/" + url.PathEscape(id), body: body, contentType: ct, auth: true}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteListing removes a listing and its media. Requires a session.
func (c *Client) DeleteListing(ctx context.Context, id string) error {
	return c.do(ctx, request{method: http.MethodDelete, path: "/api/deletePost/" + url.PathEscape(id), auth: true}, nil)
}

// --- Inquiries ---

// Inquiry is a contact form submission. Post is an optional listing id.
type Inquiry struct {
	FullName  string `json:"fullName"`
	ContactNo string `json:"contactNo,omitempty"`
	EmailID   string `json:"emailId"`
	Post      string `json:"post,omitempty"`
	Query     string `json:"query,omitempty"`
}

// SendInquiry submits the contact form.
func (c *Client) SendInquiry(ctx context.Context, in Inquiry) (*models.Inquiry, error) {
	req, err := jsonRequest(http.MethodPost, "/api/queries/sendQuery", in)
	if err != nil {
		return nil, err
	}
	var out struct {
		Query *models.Inquiry `json:"query"`
	}
	if err := c.do(ctx, req, &out); err != nil {
		return nil, err
	}
	return out.Query, nil
}

// ListInquiries returns inquiries, newest first. A nil resolved returns all.
func (c *Client) ListInquiries(ctx context.Context, resolved *bool) ([]models.InquiryView, error) {
	req := request{method: http.MethodGet, path: "/api/queries/getQueries"}
	if resolved != nil {
		req.query = url.Values{"isResolvedStatus": {strconv.FormatBool(*resolved)}}
	}
	var out []models.InquiryView
	err := c.do(ctx, req, &out)
	return out, err
}

// ResolveInquiry sets the resolution flag of an inquiry.
func (c *Client) ResolveInquiry(ctx context.Context, id string, resolved bool) (*models.Inquiry, error) {
	req, err := jsonRequest(http.MethodPut, "/api/queries/resolveQuery", map[string]any{
		"queryId":                id,
		"updateIsResolvedStatus": resolved,
	})
	if err != nil {
		return nil, err
	}
	var out struct {
		UpdatedUserQuery *models.Inquiry `json:"updatedUserQuery"`
	}
	if err := c.do(ctx, req, &out); err != nil {
		return nil, err
	}
	return out.UpdatedUserQuery, nil
}

// --- Accounts ---

// Register creates an admin account. It does not log in.
func (c *Client) Register(ctx context.Context, name, email, password string) error {
	req, err := jsonRequest(http.MethodPost, "/api/user/register", map[string]string{
		"name":     name,
		"email":    email,
		"password": password,
	})
	if err != nil {
		return err
	}
	return c.do(ctx, req, nil)
}

// Login authenticates and stores the token in the session, saving it when
// a session file is configured.
func (c *Client) Login(ctx context.Context, email, password string) error {
	req, err := jsonRequest(http.MethodPost, "/api/user/login", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return err
	}
	var out struct {
		Token string          `json:"token"`
		User  *models.Account `json:"user"`
	}
	if err := c.do(ctx, req, &out); err != nil {
		return err
	}
	if out.Token == "" {
		return errors.New("login response carried no token")
	}

	c.session.Token = out.Token
	c.session.User = out.User
	if c.sessionPath != "" {
		return c.session.Save(c.sessionPath)
	}
	return nil
}

// Logout forgets the session and removes its file.
func (c *Client) Logout() error {
	return c.session.Clear(c.sessionPath)
}
