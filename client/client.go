// Package client is a Go client for the quickpad HTTP API. It mirrors the
// web frontend's API surface, including client-side content encryption for
// password-protected notes.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"quickpad/crypto"
	"quickpad/utils"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("quickpad: %s (status %d)", e.Message, e.StatusCode)
}

// Client talks to a quickpad server.
type Client struct {
	baseURL string
	httpc   *http.Client
	token   string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(httpc *http.Client) Option {
	return func(c *Client) { c.httpc = httpc }
}

// New creates a client for the given base URL, e.g. "https://pad.example.com".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken sets the bearer token used for account endpoints.
func (c *Client) SetToken(token string) { c.token = token }

// Note is a loaded note.
type Note struct {
	Key       string
	Pad       string
	Encrypted bool
	// PasswordRequired is set when the note is encrypted and no password was
	// supplied: Pad is empty and the content was withheld by the server.
	PasswordRequired bool
	URL              string
	Monospace        bool
	Caret            int
	Files            []FileInfo
}

// FileInfo is attachment metadata.
type FileInfo struct {
	ID           string `json:"id"`
	OriginalName string `json:"originalName"`
	FileName     string `json:"fileName"`
	MimeType     string `json:"mimeType"`
	Size         int64  `json:"size"`
	CreatedAt    string `json:"createdAt"`
}

// SaveRequest describes a save. An empty Key lets the server generate a slug.
type SaveRequest struct {
	Key       string
	Pad       string
	Password  string
	URL       string
	Monospace bool
	Caret     int
}

// SaveResult reports the id the server stored the note under.
type SaveResult struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

type envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type noteResponse struct {
	envelope
	Key       string     `json:"key"`
	Pad       string     `json:"pad"`
	Pw        string     `json:"pw"`
	URL       string     `json:"url"`
	Monospace string     `json:"monospace"`
	Caret     int        `json:"caret"`
	Files     []FileInfo `json:"files"`
}

// SaveNote stores a note as-is. The pad content travels in plaintext; use
// SaveEncrypted for password-protected notes.
func (c *Client) SaveNote(ctx context.Context, req SaveRequest) (*SaveResult, error) {
	form := url.Values{
		"key":       {req.Key},
		"pad":       {req.Pad},
		"pw":        {req.Password},
		"url":       {req.URL},
		"monospace": {utils.FlagString(req.Monospace)},
		"caret":     {strconv.Itoa(req.Caret)},
	}

	var out struct {
		envelope
		SaveResult
	}
	if err := c.doForm(ctx, "POST", "/api/save", form, &out); err != nil {
		return nil, err
	}
	return &out.SaveResult, nil
}

// SaveEncrypted encrypts the pad content with the password before saving, so
// the server only ever sees ciphertext. The password also gates load/delete
// via the server-side hash.
func (c *Client) SaveEncrypted(ctx context.Context, req SaveRequest) (*SaveResult, error) {
	if req.Password == "" {
		return nil, fmt.Errorf("quickpad: SaveEncrypted requires a password")
	}
	ciphertext, err := crypto.EncryptText(req.Pad, req.Password)
	if err != nil {
		return nil, fmt.Errorf("quickpad: encrypt: %w", err)
	}
	req.Pad = ciphertext
	return c.SaveNote(ctx, req)
}

// LoadNote fetches a note. Without a password an encrypted note comes back
// with PasswordRequired set and no content. The pad of an encrypted note is
// the raw ciphertext; use LoadDecrypted to get plaintext.
func (c *Client) LoadNote(ctx context.Context, id, password string) (*Note, error) {
	target := "/api/load/" + url.PathEscape(id)
	if password != "" {
		target += "?pw=" + url.QueryEscape(password)
	}

	var out noteResponse
	if err := c.doJSON(ctx, "GET", target, nil, &out); err != nil {
		return nil, err
	}

	encrypted := utils.FlagBool(out.Pw)
	return &Note{
		Key:              out.Key,
		Pad:              out.Pad,
		Encrypted:        encrypted,
		PasswordRequired: encrypted && password == "",
		URL:              out.URL,
		Monospace:        utils.FlagBool(out.Monospace),
		Caret:            out.Caret,
		Files:            out.Files,
	}, nil
}

// LoadDecrypted loads an encrypted note and decrypts its content locally.
func (c *Client) LoadDecrypted(ctx context.Context, id, password string) (*Note, error) {
	note, err := c.LoadNote(ctx, id, password)
	if err != nil {
		return nil, err
	}
	if note.Encrypted && note.Pad != "" {
		plaintext, err := crypto.DecryptText(note.Pad, password)
		if err != nil {
			return nil, err
		}
		note.Pad = plaintext
	}
	return note, nil
}

// DeleteNote removes a note. Encrypted notes require the matching password.
func (c *Client) DeleteNote(ctx context.Context, id, password string) error {
	target := "/api/delete/" + url.PathEscape(id)
	if password != "" {
		target += "?pw=" + url.QueryEscape(password)
	}
	var out envelope
	return c.doJSON(ctx, "DELETE", target, nil, &out)
}

// ChangeURL moves a note to a new custom slug.
func (c *Client) ChangeURL(ctx context.Context, id, newURL, password string) error {
	form := url.Values{"newUrl": {newURL}}
	if password != "" {
		form.Set("pw", password)
	}
	var out envelope
	return c.doForm(ctx, "PUT", "/api/change-url/"+url.PathEscape(id), form, &out)
}

// Upload is one file in an upload batch.
type Upload struct {
	Name        string
	ContentType string
	Content     io.Reader
}

// UploadFiles attaches a batch of files to a note. The server accepts or
// rejects the batch as a whole.
func (c *Client) UploadFiles(ctx context.Context, noteID string, uploads []Upload) ([]FileInfo, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for _, u := range uploads {
		hdr := textproto.MIMEHeader{}
		hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename="%s"`, u.Name))
		if u.ContentType != "" {
			hdr.Set("Content-Type", u.ContentType)
		}
		part, err := w.CreatePart(hdr)
		if err != nil {
			return nil, fmt.Errorf("quickpad: build upload: %w", err)
		}
		if _, err := io.Copy(part, u.Content); err != nil {
			return nil, fmt.Errorf("quickpad: build upload: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("quickpad: build upload: %w", err)
	}

	req, err := c.newRequest(ctx, "POST", "/api/upload/"+url.PathEscape(noteID), buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var out struct {
		envelope
		Files []FileInfo `json:"files"`
	}
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return out.Files, nil
}

// GetFiles lists a note's attachments.
func (c *Client) GetFiles(ctx context.Context, noteID string) ([]FileInfo, error) {
	var out struct {
		envelope
		Files []FileInfo `json:"files"`
	}
	if err := c.doJSON(ctx, "GET", "/api/files/"+url.PathEscape(noteID), nil, &out); err != nil {
		return nil, err
	}
	return out.Files, nil
}

// DownloadFile streams an attachment payload. The caller must close the
// returned reader.
func (c *Client) DownloadFile(ctx context.Context, fileID string) (io.ReadCloser, error) {
	req, err := c.newRequest(ctx, "GET", "/api/file/"+url.PathEscape(fileID), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("quickpad: download: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer func() { _ = resp.Body.Close() }()
		return nil, decodeError(resp)
	}
	return resp.Body, nil
}

// DeleteFile removes a single attachment.
func (c *Client) DeleteFile(ctx context.Context, fileID string) error {
	var out envelope
	return c.doJSON(ctx, "DELETE", "/api/file/"+url.PathEscape(fileID), nil, &out)
}

// LinkFiles moves all attachments from one note id to another and returns
// how many rows moved.
func (c *Client) LinkFiles(ctx context.Context, fromNoteID, toNoteID string) (int64, error) {
	payload := map[string]string{
		"fromNoteId": fromNoteID,
		"toNoteId":   toNoteID,
	}
	var out struct {
		envelope
		Linked int64 `json:"linked"`
	}
	if err := c.doJSONBody(ctx, "POST", "/api/link-files", payload, &out); err != nil {
		return 0, err
	}
	return out.Linked, nil
}

// HealthStatus is the /api/health payload.
type HealthStatus struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Redis    string `json:"redis"`
	Uptime   string `json:"uptime"`
}

// Health reports the server's dependency status.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var out struct {
		envelope
		HealthStatus
	}
	if err := c.doJSON(ctx, "GET", "/api/health", nil, &out); err != nil {
		return nil, err
	}
	return &out.HealthStatus, nil
}

// User is an account profile.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Avatar    string `json:"avatar"`
	CreatedAt string `json:"createdAt"`
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, email, username, password string) (*User, error) {
	var out struct {
		envelope
		User *User `json:"user"`
	}
	err := c.doJSONBody(ctx, "POST", "/api/auth/register", map[string]string{
		"email":    email,
		"username": username,
		"password": password,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.User, nil
}

// Login authenticates and stores the bearer token on the client.
func (c *Client) Login(ctx context.Context, email, password string) (*User, error) {
	var out struct {
		envelope
		Token string `json:"token"`
		User  *User  `json:"user"`
	}
	err := c.doJSONBody(ctx, "POST", "/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &out)
	if err != nil {
		return nil, err
	}
	c.token = out.Token
	return out.User, nil
}

// Me fetches the authenticated profile.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var out struct {
		envelope
		User *User `json:"user"`
	}
	if err := c.doJSON(ctx, "GET", "/api/auth/me", nil, &out); err != nil {
		return nil, err
	}
	return out.User, nil
}

// UpdateProfile changes profile fields; nil fields are left untouched.
func (c *Client) UpdateProfile(ctx context.Context, firstName, lastName, avatar *string) error {
	payload := map[string]*string{}
	if firstName != nil {
		payload["firstName"] = firstName
	}
	if lastName != nil {
		payload["lastName"] = lastName
	}
	if avatar != nil {
		payload["avatar"] = avatar
	}
	var out envelope
	return c.doJSONBody(ctx, "PUT", "/api/auth/profile", payload, &out)
}

// Logout revokes the current session and clears the stored token.
func (c *Client) Logout(ctx context.Context) error {
	var out envelope
	if err := c.doJSON(ctx, "POST", "/api/auth/logout", nil, &out); err != nil {
		return err
	}
	c.token = ""
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, target string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+target, body)
	if err != nil {
		return nil, fmt.Errorf("quickpad: build request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) doForm(ctx context.Context, method, target string, form url.Values, out interface{}) error {
	req, err := c.newRequest(ctx, method, target, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, out)
}

func (c *Client) doJSONBody(ctx context.Context, method, target string, payload interface{}, out interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("quickpad: encode request: %w", err)
	}
	req, err := c.newRequest(ctx, method, target, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) doJSON(ctx context.Context, method, target string, body io.Reader, out interface{}) error {
	req, err := c.newRequest(ctx, method, target, body)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("quickpad: request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("quickpad: decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil || env.Error == "" {
		return &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	return &APIError{StatusCode: resp.StatusCode, Message: env.Error}
}
