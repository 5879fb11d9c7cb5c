package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"quickpad/crypto"
	"quickpad/storage"
)

func newNotesTestApp(t *testing.T, db *MockDB) (*fiber.App, *storage.LocalStore) {
	t.Helper()
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	h := NewNotesHandler(db, store)
	app := fiber.New()
	app.Post("/api/save", h.SaveNote)
	app.Get("/api/load/:id", h.LoadNote)
	app.Delete("/api/delete/:id", h.DeleteNote)
	app.Put("/api/change-url/:id", h.ChangeURL)
	app.Get("/api/notes", h.ListNotes)
	app.Get("/api/search", h.SearchNotes)
	app.Get("/api/stats", h.Stats)
	return app, store
}

func formRequest(method, target string, form url.Values) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
	return req
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &body))
	return body
}

func TestSaveNote_NewNoteGeneratesSlug(t *testing.T) {
	db := &MockDB{}
	app, _ := newNotesTestApp(t, db)

	db.On("Exec", anyArgs(9)...).Return(int64(1), nil)

	resp, err := app.Test(formRequest("POST", "/api/save", url.Values{"pad": {"hello"}}), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, true, body["success"])
	key, _ := body["key"].(string)
	assert.Len(t, key, 20)
	db.AssertExpectations(t)
}

func TestSaveNote_ExplicitKeyIsKept(t *testing.T) {
	db := &MockDB{}
	app, _ := newNotesTestApp(t, db)

	db.On("Exec", anyArgs(9)...).Return(int64(1), nil)

	resp, err := app.Test(formRequest("POST", "/api/save", url.Values{
		"key": {"abc"},
		"pad": {"hello"},
	}), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "abc", body["key"])
}

func TestSaveNote_RejectsBadMonospaceFlag(t *testing.T) {
	db := &MockDB{}
	app, _ := newNotesTestApp(t, db)

	resp, err := app.Test(formRequest("POST", "/api/save", url.Values{
		"pad":       {"x"},
		"monospace": {"yes"},
	}), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, false, body["success"])
	db.AssertNotCalled(t, "Exec")
}

func TestSaveNote_RejectsNegativeCaret(t *testing.T) {
	db := &MockDB{}
	app, _ := newNotesTestApp(t, db)

	resp, err := app.Test(formRequest("POST", "/api/save", url.Values{
		"pad":   {"x"},
		"caret": {"-3"},
	}), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestLoadNote_PlainNote(t *testing.T) {
	db := &MockDB{}
	app, _ := newNotesTestApp(t, db)

	row := &MockRow{}
	row.On("Scan", anyArgs(9)...).
		Run(noteScanner("abc", "hello", nil, false, false, 0, "")).
		Return(nil)
	db.On("QueryRow", anyArgs(3)...).Return(row)

	rows := &MockRows{}
	rows.On("Next").Return(false)
	db.On("Query", anyArgs(3)...).Return(rows, nil)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/load/abc", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "hello", body["pad"])
	assert.Equal(t, "0", body["pw"])
	assert.Equal(t, []interface{}{}, body["files"])
}

func TestLoadNote_NotFound(t *testing.T) {
	db := &MockDB{}
	app, _ := newNotesTestApp(t, db)

	row := &MockRow{}
	row.On("Scan", anyArgs(9)...).Return(pgx.ErrNoRows)
	db.On("QueryRow", anyArgs(3)...).Return(row)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/load/missing", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, false, body["success"])
}

func TestLoadNote_EncryptedWithoutPasswordReturnsSentinel(t *testing.T) {
	db := &MockDB{}
	app, _ := newNotesTestApp(t, db)

	salt, err := crypto.NewSalt()
	require.NoError(t, err)
	hash := crypto.HashPassword("hunter2", salt)

	row := &MockRow{}
	row.On("Scan", anyArgs(9)...).
		Run(noteScanner("sec1", "ciphertext-blob", &hash, true, false, 0, "")).
		Return(nil)
	db.On("QueryRow", anyArgs(3)...).Return(row)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/load/sec1", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "1", body["pw"])
	assert.Equal(t, "", body["pad"], "stored content must not leak without a password")
	_, hasFiles := body["files"]
	assert.False(t, hasFiles)
}

func TestLoadNote_EncryptedWrongPassword(t *testing.T) {
	db := &MockDB{}
	app, _ := newNotesTestApp(t, db)

	salt, err := crypto.NewSalt()
	require.NoError(t, err)
	hash := crypto.HashPassword("hunter2", salt)

	row := &MockRow{}
	row.On("Scan", anyArgs(9)...).
		Run(noteScanner("sec1", "ciphertext-blob", &hash, true, false, 0, "")).
		Return(nil)
	db.On("QueryRow", anyArgs(3)...).Return(row)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/load/sec1?pw=nope", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestLoadNote_EncryptedCorrectPassword(t *testing.T) {
	db := &MockDB{}
	app, _ := newNotesTestApp(t, db)

	salt, err := crypto.NewSalt()
	require.NoError(t, err)
	hash := crypto.HashPassword("hunter2", salt)

	row := &MockRow{}
	row.On("Scan", anyArgs(9)...).
		Run(noteScanner("sec1", "ciphertext-blob", &hash, true, true, 7, "")).
		Return(nil)
	db.On("QueryRow", anyArgs(3)...).Return(row)

	rows := &MockRows{}
	rows.On("Next").Return(false)
	db.On("Query", anyArgs(3)...).Return(rows, nil)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/load/sec1?pw=hunter2", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "ciphertext-blob", body["pad"])
	assert.Equal(t, "1", body["pw"])
	assert.Equal(t, "1", body["monospace"])
	assert.Equal(t, float64(7), body["caret"])
}

func TestDeleteNote_EncryptedRequiresPassword(t *testing.T) {
	db := &MockDB{}
	app, _ := newNotesTestApp(t, db)

	salt, err := crypto.NewSalt()
	require.NoError(t, err)
	hash := crypto.HashPassword("hunter2", salt)

	row := &MockRow{}
	row.On("Scan", anyArgs(9)...).
		Run(noteScanner("sec1", "blob", &hash, true, false, 0, "")).
		Return(nil)
	db.On("QueryRow", anyArgs(3)...).Return(row)

	resp, err := app.Test(httptest.NewRequest("DELETE", "/api/delete/sec1", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	db.AssertNotCalled(t, "Exec")
}

func TestDeleteNote_PlainNote(t *testing.T) {
	db := &MockDB{}
	app, _ := newNotesTestApp(t, db)

	row := &MockRow{}
	row.On("Scan", anyArgs(9)...).
		Run(noteScanner("abc", "hello", nil, false, false, 0, "")).
		Return(nil)
	db.On("QueryRow", anyArgs(3)...).Return(row)

	rows := &MockRows{}
	rows.On("Next").Return(false)
	db.On("Query", anyArgs(3)...).Return(rows, nil)
	db.On("Exec", anyArgs(3)...).Return(int64(1), nil)

	resp, err := app.Test(httptest.NewRequest("DELETE", "/api/delete/abc", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	db.AssertExpectations(t)
}

func TestDeleteNote_RemovesAttachmentPayloads(t *testing.T) {
	db := &MockDB{}
	app, store := newNotesTestApp(t, db)

	stored := store.StoredName("report.pdf")
	_, err := store.Save(stored, strings.NewReader("payload"))
	require.NoError(t, err)
	path := store.Path(stored)
	require.True(t, store.Exists(path))

	row := &MockRow{}
	row.On("Scan", anyArgs(9)...).
		Run(noteScanner("abc", "hello", nil, false, false, 0, "")).
		Return(nil)
	db.On("QueryRow", anyArgs(3)...).Return(row)

	rows := &MockRows{}
	rows.On("Next").Return(true).Once()
	rows.On("Next").Return(false)
	rows.On("Scan", anyArgs(1)...).Run(func(args mock.Arguments) {
		*args.Get(0).(*string) = path
	}).Return(nil)
	db.On("Query", anyArgs(3)...).Return(rows, nil)
	db.On("Exec", anyArgs(3)...).Return(int64(1), nil)

	resp, err := app.Test(httptest.NewRequest("DELETE", "/api/delete/abc", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.False(t, store.Exists(path))
}

func TestDeleteNote_FailsWhenPayloadPathsUnreadable(t *testing.T) {
	db := &MockDB{}
	app, _ := newNotesTestApp(t, db)

	row := &MockRow{}
	row.On("Scan", anyArgs(9)...).
		Run(noteScanner("abc", "hello", nil, false, false, 0, "")).
		Return(nil)
	db.On("QueryRow", anyArgs(3)...).Return(row)

	rows := &MockRows{}
	rows.On("Next").Return(true).Once()
	rows.On("Scan", anyArgs(1)...).Return(assert.AnError)
	db.On("Query", anyArgs(3)...).Return(rows, nil)

	resp, err := app.Test(httptest.NewRequest("DELETE", "/api/delete/abc", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	db.AssertNotCalled(t, "Exec")
}

func TestChangeURL_RejectsInvalidSlug(t *testing.T) {
	db := &MockDB{}
	app, _ := newNotesTestApp(t, db)

	resp, err := app.Test(formRequest("PUT", "/api/change-url/abc", url.Values{
		"newUrl": {"not/a/slug"},
	}), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestChangeURL_ConflictWhenTaken(t *testing.T) {
	db := &MockDB{}
	app, _ := newNotesTestApp(t, db)

	existing := &MockRow{}
	existing.On("Scan", anyArgs(9)...).
		Run(noteScanner("abc", "hello", nil, false, false, 0, "")).
		Return(nil)

	takenRow := &MockRow{}
	takenRow.On("Scan", anyArgs(1)...).
		Run(func(args mock.Arguments) { *(args.Get(0).(*bool)) = true }).
		Return(nil)

	db.On("QueryRow", anyArgs(3)...).Return(existing).Once()
	db.On("QueryRow", anyArgs(4)...).Return(takenRow).Once()

	resp, err := app.Test(formRequest("PUT", "/api/change-url/abc", url.Values{
		"newUrl": {"taken-slug"},
	}), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestChangeURL_NoteAddressableAtNewSlug(t *testing.T) {
	db := &MockDB{}
	app, _ := newNotesTestApp(t, db)

	current := &MockRow{}
	current.On("Scan", anyArgs(9)...).
		Run(noteScanner("abc", "hello", nil, false, false, 0, "")).
		Return(nil)
	db.On("QueryRow", mock.Anything, mock.Anything, "abc").Return(current)

	free := &MockRow{}
	free.On("Scan", anyArgs(1)...).
		Run(func(args mock.Arguments) { *(args.Get(0).(*bool)) = false }).
		Return(nil)
	db.On("QueryRow", mock.Anything, mock.Anything, "fresh", "abc").Return(free)

	// Both the note row and its file rows move under the new key
	tx := &MockTx{}
	tx.On("Exec", mock.Anything, mock.Anything, "fresh", "abc").Return(int64(1), nil).Twice()
	tx.On("Commit", mock.Anything).Return(nil)
	tx.On("Rollback", mock.Anything).Return(pgx.ErrTxClosed)
	db.On("Begin", mock.Anything).Return(tx, nil)

	resp, err := app.Test(formRequest("PUT", "/api/change-url/abc", url.Values{
		"newUrl": {"fresh"},
	}), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "fresh", body["key"])
	tx.AssertExpectations(t)

	renamed := &MockRow{}
	renamed.On("Scan", anyArgs(9)...).
		Run(noteScanner("fresh", "hello", nil, false, false, 0, "fresh")).
		Return(nil)
	db.On("QueryRow", mock.Anything, mock.Anything, "fresh").Return(renamed)
	empty := &MockRows{}
	empty.On("Next").Return(false)
	db.On("Query", anyArgs(3)...).Return(empty, nil)

	loadResp, err := app.Test(httptest.NewRequest("GET", "/api/load/fresh", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, loadResp.StatusCode)
	loadBody := decodeBody(t, loadResp)
	assert.Equal(t, "hello", loadBody["pad"])
}

func TestListNotes_RedactsEncryptedContent(t *testing.T) {
	db := &MockDB{}
	app, _ := newNotesTestApp(t, db)

	rows := &MockRows{}
	rows.On("Next").Return(true).Once()
	rows.On("Next").Return(false).Once()
	rows.On("Scan", anyArgs(8)...).
		Run(func(args mock.Arguments) {
			*(args.Get(0).(*string)) = "sec1"
			*(args.Get(1).(*string)) = "ciphertext-blob"
			*(args.Get(2).(*bool)) = true
		}).
		Return(nil)
	db.On("Query", anyArgs(4)...).Return(rows, nil)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/notes", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	notes := body["notes"].([]interface{})
	require.Len(t, notes, 1)
	note := notes[0].(map[string]interface{})
	assert.Equal(t, "sec1", note["key"])
	assert.Equal(t, "", note["pad"])
	assert.Equal(t, "1", note["pw"])
}

func TestSearchNotes_RequiresQuery(t *testing.T) {
	db := &MockDB{}
	app, _ := newNotesTestApp(t, db)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/search", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
