package handlers

import (
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"quickpad/crypto"
	"quickpad/database"
	"quickpad/metrics"
	"quickpad/storage"
	"quickpad/utils"
)

// NotesHandler implements the note save/load/delete lifecycle
type NotesHandler struct {
	db    database.Database
	store *storage.LocalStore
}

// NewNotesHandler creates a new notes handler
func NewNotesHandler(db database.Database, store *storage.LocalStore) *NotesHandler {
	return &NotesHandler{db: db, store: store}
}

// noteRow mirrors one row of the notes table
type noteRow struct {
	ID           string
	Content      string
	PasswordHash sql.NullString
	IsEncrypted  bool
	Monospace    bool
	Caret        int
	URL          sql.NullString
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (h *NotesHandler) getNote(c *fiber.Ctx, id string) (*noteRow, error) {
	var n noteRow
	err := h.db.QueryRow(c.Context(), `
		SELECT id, content, password_hash, is_encrypted, monospace, caret, url, created_at, updated_at
		FROM notes WHERE id = $1`, id).
		Scan(&n.ID, &n.Content, &n.PasswordHash, &n.IsEncrypted, &n.Monospace, &n.Caret, &n.URL, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// SaveNote upserts a note. The id is resolved from the explicit key, then the
// url, then a freshly generated random slug. A supplied password makes the
// note encrypted; its absence makes the note public, even if a previous save
// carried a password (full-content last-write-wins upsert, no versioning).
func (h *NotesHandler) SaveNote(c *fiber.Ctx) error {
	key := strings.TrimSpace(c.FormValue("key"))
	pad := c.FormValue("pad")
	pw := c.FormValue("pw")
	url := strings.TrimSpace(c.FormValue("url"))
	monospace := c.FormValue("monospace", "0")
	caretRaw := c.FormValue("caret", "0")

	if monospace != "0" && monospace != "1" {
		return respondValidationError(c, "monospace must be 0 or 1")
	}
	caret, err := strconv.Atoi(caretRaw)
	if err != nil || caret < 0 {
		return respondValidationError(c, "caret must be a non-negative integer")
	}

	noteID := key
	if noteID == "" {
		noteID = url
	}
	if noteID == "" {
		noteID = utils.NewNoteSlug()
	}

	// Server-side password hash, independent of the client encryption key
	var passwordHash sql.NullString
	isEncrypted := pw != ""
	if isEncrypted {
		salt, err := crypto.NewSalt()
		if err != nil {
			return respondStorageError(c, "SAVE_NOTE_SALT", err, "Failed to save note")
		}
		passwordHash = sql.NullString{String: crypto.HashPassword(pw, salt), Valid: true}
	}

	_, err = h.db.Exec(c.Context(), `
		INSERT INTO notes (id, content, password_hash, is_encrypted, monospace, caret, url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			password_hash = EXCLUDED.password_hash,
			is_encrypted = EXCLUDED.is_encrypted,
			monospace = EXCLUDED.monospace,
			caret = EXCLUDED.caret,
			url = EXCLUDED.url,
			updated_at = NOW()`,
		noteID, pad, passwordHash, isEncrypted, utils.FlagBool(monospace), caret, nullIfEmpty(url))
	if err != nil {
		return respondStorageError(c, "SAVE_NOTE", err, "Failed to save note")
	}

	metrics.IncrementNoteOperation("save")
	metrics.IncrementDatabaseQuery("insert")

	return respondOK(c, fiber.Map{
		"key":     noteID,
		"url":     url,
		"message": "Note saved successfully",
	})
}

// LoadNote returns a note by id. Encrypted notes without a supplied password
// yield the password-required sentinel (empty pad, pw:"1") rather than the
// stored ciphertext; a wrong password yields 401.
func (h *NotesHandler) LoadNote(c *fiber.Ctx) error {
	id := c.Params("id")
	pw := c.Query("pw")

	note, err := h.getNote(c, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return respondNotFound(c, "Note not found")
		}
		return respondStorageError(c, "LOAD_NOTE", err, "Failed to load note")
	}

	if note.IsEncrypted {
		if pw == "" {
			// Password required: never leak the stored content
			return respondOK(c, fiber.Map{
				"key":       id,
				"pad":       "",
				"pw":        "1",
				"url":       note.URL.String,
				"monospace": utils.FlagString(note.Monospace),
				"caret":     note.Caret,
			})
		}
		if !crypto.VerifyPassword(pw, note.PasswordHash.String) {
			return respondUnauthorized(c, "Invalid password")
		}
	}

	files, err := fileRecords(c, h.db, id)
	if err != nil {
		return respondStorageError(c, "LOAD_NOTE_FILES", err, "Failed to load note")
	}

	metrics.IncrementNoteOperation("load")
	metrics.IncrementDatabaseQuery("select")

	return respondOK(c, fiber.Map{
		"key":       id,
		"pad":       note.Content,
		"pw":        utils.FlagString(note.IsEncrypted),
		"url":       note.URL.String,
		"monospace": utils.FlagString(note.Monospace),
		"caret":     note.Caret,
		"files":     files,
	})
}

// DeleteNote removes a note and its attachments. An encrypted note requires a
// matching password; payloads on disk are removed along with the rows.
func (h *NotesHandler) DeleteNote(c *fiber.Ctx) error {
	id := c.Params("id")
	pw := c.Query("pw")

	note, err := h.getNote(c, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return respondNotFound(c, "Note not found")
		}
		return respondStorageError(c, "DELETE_NOTE", err, "Failed to delete note")
	}

	if note.IsEncrypted && !crypto.VerifyPassword(pw, note.PasswordHash.String) {
		return respondUnauthorized(c, "Invalid password")
	}

	// Collect payload paths before the FK cascade removes the rows
	rows, err := h.db.Query(c.Context(), `SELECT file_path FROM files WHERE note_id = $1`, id)
	if err != nil {
		return respondStorageError(c, "DELETE_NOTE_FILES", err, "Failed to delete note")
	}
	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return respondStorageError(c, "DELETE_NOTE_FILES", err, "Failed to delete note")
		}
		paths = append(paths, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return respondStorageError(c, "DELETE_NOTE_FILES", err, "Failed to delete note")
	}

	if _, err := h.db.Exec(c.Context(), `DELETE FROM notes WHERE id = $1`, id); err != nil {
		return respondStorageError(c, "DELETE_NOTE", err, "Failed to delete note")
	}

	for _, p := range paths {
		if err := h.store.Remove(p); err != nil {
			utils.LogRequestError(c, "DELETE_NOTE_PAYLOAD", err, "path", p)
		}
	}

	metrics.IncrementNoteOperation("delete")
	metrics.IncrementDatabaseQuery("delete")

	return respondOK(c, fiber.Map{"message": "Note deleted successfully"})
}

// ChangeURL moves a note to a new custom slug. The row is re-keyed, so the
// note stops answering at the old slug. The password gate applies to
// encrypted notes the same way it does for delete.
func (h *NotesHandler) ChangeURL(c *fiber.Ctx) error {
	id := c.Params("id")
	newURL := strings.TrimSpace(c.FormValue("newUrl"))
	pw := c.FormValue("pw")

	if newURL == "" {
		return respondValidationError(c, "newUrl is required")
	}
	if !isValidSlug(newURL) {
		return respondValidationError(c, "newUrl may only contain letters, digits, hyphens and underscores")
	}

	note, err := h.getNote(c, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return respondNotFound(c, "Note not found")
		}
		return respondStorageError(c, "CHANGE_URL", err, "Failed to change URL")
	}

	if note.IsEncrypted && !crypto.VerifyPassword(pw, note.PasswordHash.String) {
		return respondUnauthorized(c, "Invalid password")
	}

	// The new slug must not collide with another note's id or url
	var taken bool
	err = h.db.QueryRow(c.Context(), `
		SELECT EXISTS(SELECT 1 FROM notes WHERE (id = $1 OR url = $1) AND id <> $2)`,
		newURL, id).Scan(&taken)
	if err != nil {
		return respondStorageError(c, "CHANGE_URL", err, "Failed to change URL")
	}
	if taken {
		return respondError(c, fiber.StatusConflict, "URL is already taken")
	}

	// Re-key the row so the note answers lookups at the new slug. The files
	// FK does not cascade on update, so its rows move in the same transaction.
	tx, err := h.db.Begin(c.Context())
	if err != nil {
		return respondStorageError(c, "CHANGE_URL", err, "Failed to change URL")
	}
	defer func() { _ = tx.Rollback(c.Context()) }()

	if _, err := tx.Exec(c.Context(), `
		UPDATE notes SET id = $1, url = $1, updated_at = NOW() WHERE id = $2`, newURL, id); err != nil {
		return respondStorageError(c, "CHANGE_URL", err, "Failed to change URL")
	}
	if _, err := tx.Exec(c.Context(), `
		UPDATE files SET note_id = $1 WHERE note_id = $2`, newURL, id); err != nil {
		return respondStorageError(c, "CHANGE_URL", err, "Failed to change URL")
	}
	if err := tx.Commit(c.Context()); err != nil {
		return respondStorageError(c, "CHANGE_URL", err, "Failed to change URL")
	}

	metrics.IncrementNoteOperation("change_url")
	metrics.IncrementDatabaseQuery("update")

	return respondOK(c, fiber.Map{"key": newURL, "url": newURL, "message": "URL changed successfully"})
}

// ListNotes returns recent notes, most recently updated first. Content of
// encrypted notes is redacted the same way LoadNote redacts it.
func (h *NotesHandler) ListNotes(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 100)
	offset := c.QueryInt("offset", 0)
	if limit < 1 || limit > 500 || offset < 0 {
		return respondValidationError(c, "invalid limit or offset")
	}

	rows, err := h.db.Query(c.Context(), `
		SELECT id, content, is_encrypted, monospace, caret, url, created_at, updated_at
		FROM notes ORDER BY updated_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return respondStorageError(c, "LIST_NOTES", err, "Failed to list notes")
	}
	defer rows.Close()

	notes := h.collectNoteSummaries(rows)
	metrics.IncrementDatabaseQuery("select")

	return respondOK(c, fiber.Map{"notes": notes})
}

// SearchNotes performs a substring search over note content, ids and urls.
func (h *NotesHandler) SearchNotes(c *fiber.Ctx) error {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		return respondValidationError(c, "q is required")
	}
	limit := c.QueryInt("limit", 50)
	if limit < 1 || limit > 200 {
		return respondValidationError(c, "invalid limit")
	}

	pattern := "%" + q + "%"
	rows, err := h.db.Query(c.Context(), `
		SELECT id, content, is_encrypted, monospace, caret, url, created_at, updated_at
		FROM notes
		WHERE content ILIKE $1 OR id ILIKE $1 OR url ILIKE $1
		ORDER BY updated_at DESC LIMIT $2`, pattern, limit)
	if err != nil {
		return respondStorageError(c, "SEARCH_NOTES", err, "Failed to search notes")
	}
	defer rows.Close()

	notes := h.collectNoteSummaries(rows)
	metrics.IncrementDatabaseQuery("select")

	return respondOK(c, fiber.Map{"notes": notes})
}

// Stats returns aggregate note counters.
func (h *NotesHandler) Stats(c *fiber.Ctx) error {
	var total, encrypted, public int
	var lastUpdated sql.NullTime
	err := h.db.QueryRow(c.Context(), `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE is_encrypted),
			COUNT(*) FILTER (WHERE NOT is_encrypted),
			MAX(updated_at)
		FROM notes`).Scan(&total, &encrypted, &public, &lastUpdated)
	if err != nil {
		return respondStorageError(c, "NOTE_STATS", err, "Failed to get stats")
	}

	metrics.IncrementDatabaseQuery("select")

	stats := fiber.Map{
		"totalNotes":     total,
		"encryptedNotes": encrypted,
		"publicNotes":    public,
	}
	if lastUpdated.Valid {
		stats["lastUpdated"] = utils.FormatTime(lastUpdated.Time)
	}
	return respondOK(c, stats)
}

func (h *NotesHandler) collectNoteSummaries(rows pgx.Rows) []fiber.Map {
	notes := []fiber.Map{}
	for rows.Next() {
		var n noteRow
		if err := rows.Scan(&n.ID, &n.Content, &n.IsEncrypted, &n.Monospace, &n.Caret, &n.URL, &n.CreatedAt, &n.UpdatedAt); err != nil {
			continue
		}
		pad := n.Content
		if n.IsEncrypted {
			pad = ""
		}
		notes = append(notes, fiber.Map{
			"key":       n.ID,
			"pad":       pad,
			"pw":        utils.FlagString(n.IsEncrypted),
			"url":       n.URL.String,
			"monospace": utils.FlagString(n.Monospace),
			"caret":     n.Caret,
			"createdAt": utils.FormatTime(n.CreatedAt),
			"updatedAt": utils.FormatTime(n.UpdatedAt),
		})
	}
	return notes
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isValidSlug(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return len(s) > 0 && len(s) <= 64
}
