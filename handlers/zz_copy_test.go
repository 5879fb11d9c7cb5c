package handlers

import (
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestZZVerbatimCopy(t *testing.T) {
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
