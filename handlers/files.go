package handlers

import (
	"errors"
	"fmt"
	"mime/multipart"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"quickpad/config"
	"quickpad/database"
	"quickpad/metrics"
	"quickpad/storage"
	"quickpad/utils"
)

// allowedUploadTypes is the MIME allowlist for attachments: common image and
// office document types only.
var allowedUploadTypes = map[string]bool{
	"image/jpeg":      true,
	"image/jpg":       true,
	"image/png":       true,
	"image/webp":      true,
	"application/pdf": true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.ms-excel": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
	"application/vnd.ms-powerpoint": true,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": true,
}

// FilesHandler implements attachment upload, listing, download and deletion
type FilesHandler struct {
	db    database.Database
	store *storage.LocalStore
	cfg   *config.Config
}

// NewFilesHandler creates a new files handler
func NewFilesHandler(db database.Database, store *storage.LocalStore, cfg *config.Config) *FilesHandler {
	return &FilesHandler{db: db, store: store, cfg: cfg}
}

// fileRow mirrors one row of the files table
type fileRow struct {
	ID           string
	NoteID       string
	OriginalName string
	FileName     string
	FilePath     string
	MimeType     string
	Size         int64
	CreatedAt    time.Time
}

// Upload accepts a multipart batch under the "files" field. The batch is
// all-or-nothing: every file must pass the size and MIME checks before any
// payload is kept, and a failure after partial writes removes what was
// already written.
func (h *FilesHandler) Upload(c *fiber.Ctx) error {
	noteID := c.Params("noteId")

	var exists bool
	if err := h.db.QueryRow(c.Context(), `SELECT EXISTS(SELECT 1 FROM notes WHERE id = $1)`, noteID).Scan(&exists); err != nil {
		return respondStorageError(c, "UPLOAD_NOTE_LOOKUP", err, "Failed to upload files")
	}
	if !exists {
		metrics.IncrementUploadBatch("rejected")
		return respondNotFound(c, "Note not found")
	}

	form, err := c.MultipartForm()
	if err != nil {
		metrics.IncrementUploadBatch("rejected")
		return respondValidationError(c, "Invalid multipart form")
	}
	batch := form.File["files"]
	if len(batch) == 0 {
		metrics.IncrementUploadBatch("rejected")
		return respondValidationError(c, "No files provided")
	}
	if len(batch) > h.cfg.MaxUploadFiles {
		metrics.IncrementUploadBatch("rejected")
		return respondValidationError(c, fmt.Sprintf("Too many files (max %d)", h.cfg.MaxUploadFiles))
	}

	// Validate the whole batch before writing anything
	for _, fh := range batch {
		if fh.Size > h.cfg.MaxUploadBytes {
			metrics.IncrementUploadBatch("rejected")
			return respondValidationError(c, fmt.Sprintf("File %s exceeds the size limit", fh.Filename))
		}
		if !allowedUploadTypes[uploadContentType(fh)] {
			metrics.IncrementUploadBatch("rejected")
			return respondUnsupportedMedia(c, fmt.Sprintf("File type not allowed for %s", fh.Filename))
		}
	}

	written := make([]string, 0, len(batch))
	cleanup := func() {
		for _, p := range written {
			if err := h.store.Remove(p); err != nil {
				utils.LogRequestError(c, "UPLOAD_CLEANUP", err, "path", p)
			}
		}
	}

	records := make([]fileRow, 0, len(batch))
	for _, fh := range batch {
		src, err := fh.Open()
		if err != nil {
			cleanup()
			return respondStorageError(c, "UPLOAD_OPEN", err, "Failed to upload files")
		}
		storedName := h.store.StoredName(fh.Filename)
		n, err := h.store.Save(storedName, src)
		_ = src.Close()
		if err != nil {
			cleanup()
			return respondStorageError(c, "UPLOAD_WRITE", err, "Failed to upload files")
		}
		path := h.store.Path(storedName)
		written = append(written, path)
		records = append(records, fileRow{
			ID:           uuid.New().String(),
			NoteID:       noteID,
			OriginalName: fh.Filename,
			FileName:     storedName,
			FilePath:     path,
			MimeType:     uploadContentType(fh),
			Size:         n,
		})
	}

	tx, err := h.db.Begin(c.Context())
	if err != nil {
		cleanup()
		return respondStorageError(c, "UPLOAD_TX", err, "Failed to upload files")
	}
	defer func() { _ = tx.Rollback(c.Context()) }()

	for _, r := range records {
		if _, err := tx.Exec(c.Context(), `
			INSERT INTO files (id, note_id, original_name, file_name, file_path, mime_type, size, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())`,
			r.ID, r.NoteID, r.OriginalName, r.FileName, r.FilePath, r.MimeType, r.Size); err != nil {
			cleanup()
			return respondStorageError(c, "UPLOAD_INSERT", err, "Failed to upload files")
		}
	}
	if err := tx.Commit(c.Context()); err != nil {
		cleanup()
		return respondStorageError(c, "UPLOAD_COMMIT", err, "Failed to upload files")
	}

	metrics.IncrementUploadBatch("accepted")
	out := make([]fiber.Map, 0, len(records))
	for _, r := range records {
		metrics.AddUploadBytes(r.Size)
		out = append(out, fiber.Map{
			"id":           r.ID,
			"originalName": r.OriginalName,
			"fileName":     r.FileName,
			"mimeType":     r.MimeType,
			"size":         r.Size,
		})
	}
	metrics.IncrementDatabaseQuery("insert")

	return respondOK(c, fiber.Map{"files": out, "message": "Files uploaded successfully"})
}

// ListFiles returns the attachment metadata for a note, oldest first.
func (h *FilesHandler) ListFiles(c *fiber.Ctx) error {
	noteID := c.Params("noteId")

	var exists bool
	if err := h.db.QueryRow(c.Context(), `SELECT EXISTS(SELECT 1 FROM notes WHERE id = $1)`, noteID).Scan(&exists); err != nil {
		return respondStorageError(c, "LIST_FILES", err, "Failed to list files")
	}
	if !exists {
		return respondNotFound(c, "Note not found")
	}

	files, err := h.fileRecordsFor(c, noteID)
	if err != nil {
		return respondStorageError(c, "LIST_FILES", err, "Failed to list files")
	}

	metrics.IncrementDatabaseQuery("select")
	return respondOK(c, fiber.Map{"files": files})
}

// DownloadFile streams an attachment payload with its original name. A
// missing row and a missing payload on disk both read as 404.
func (h *FilesHandler) DownloadFile(c *fiber.Ctx) error {
	fileID := c.Params("fileId")

	var f fileRow
	err := h.db.QueryRow(c.Context(), `
		SELECT id, note_id, original_name, file_name, file_path, mime_type, size, created_at
		FROM files WHERE id = $1`, fileID).
		Scan(&f.ID, &f.NoteID, &f.OriginalName, &f.FileName, &f.FilePath, &f.MimeType, &f.Size, &f.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return respondNotFound(c, "File not found")
		}
		return respondStorageError(c, "DOWNLOAD_FILE", err, "Failed to download file")
	}

	if !h.store.Exists(f.FilePath) {
		utils.LogRequestError(c, "DOWNLOAD_FILE_MISSING", errors.New("payload missing on disk"), "file_id", f.ID)
		return respondNotFound(c, "File not found")
	}

	metrics.IncrementDatabaseQuery("select")
	c.Set(fiber.HeaderContentType, f.MimeType)
	return c.Download(f.FilePath, f.OriginalName)
}

// DeleteFile removes a single attachment. A payload already gone from disk
// does not fail the delete.
func (h *FilesHandler) DeleteFile(c *fiber.Ctx) error {
	fileID := c.Params("fileId")

	var filePath string
	err := h.db.QueryRow(c.Context(), `SELECT file_path FROM files WHERE id = $1`, fileID).Scan(&filePath)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return respondNotFound(c, "File not found")
		}
		return respondStorageError(c, "DELETE_FILE", err, "Failed to delete file")
	}

	if _, err := h.db.Exec(c.Context(), `DELETE FROM files WHERE id = $1`, fileID); err != nil {
		return respondStorageError(c, "DELETE_FILE", err, "Failed to delete file")
	}

	if err := h.store.Remove(filePath); err != nil {
		utils.LogRequestError(c, "DELETE_FILE_PAYLOAD", err, "file_id", fileID)
	}

	metrics.IncrementDatabaseQuery("delete")
	return respondOK(c, fiber.Map{"message": "File deleted successfully"})
}

// LinkFiles re-points every attachment of one note at another, used when a
// scratch editor id is promoted to a saved note. Payloads stay where they
// are; only the rows move.
func (h *FilesHandler) LinkFiles(c *fiber.Ctx) error {
	var req struct {
		FromNoteID string `json:"fromNoteId" form:"fromNoteId"`
		ToNoteID   string `json:"toNoteId" form:"toNoteId"`
	}
	if err := c.BodyParser(&req); err != nil {
		return respondValidationError(c, "fromNoteId and toNoteId are required")
	}
	fromNoteID := strings.TrimSpace(req.FromNoteID)
	toNoteID := strings.TrimSpace(req.ToNoteID)
	if fromNoteID == "" || toNoteID == "" {
		return respondValidationError(c, "fromNoteId and toNoteId are required")
	}
	if fromNoteID == toNoteID {
		return respondValidationError(c, "fromNoteId and toNoteId must differ")
	}

	var exists bool
	if err := h.db.QueryRow(c.Context(), `SELECT EXISTS(SELECT 1 FROM notes WHERE id = $1)`, toNoteID).Scan(&exists); err != nil {
		return respondStorageError(c, "LINK_FILES", err, "Failed to link files")
	}
	if !exists {
		return respondNotFound(c, "Note not found")
	}

	tag, err := h.db.Exec(c.Context(), `UPDATE files SET note_id = $1 WHERE note_id = $2`, toNoteID, fromNoteID)
	if err != nil {
		return respondStorageError(c, "LINK_FILES", err, "Failed to link files")
	}

	metrics.IncrementDatabaseQuery("update")
	return respondOK(c, fiber.Map{
		"linked":  tag.RowsAffected(),
		"message": "Files linked successfully",
	})
}

// fileRecordsFor loads the attachment metadata for a note in insertion order.
func (h *FilesHandler) fileRecordsFor(c *fiber.Ctx, noteID string) ([]fiber.Map, error) {
	return fileRecords(c, h.db, noteID)
}

func fileRecords(c *fiber.Ctx, db database.Database, noteID string) ([]fiber.Map, error) {
	rows, err := db.Query(c.Context(), `
		SELECT id, original_name, file_name, mime_type, size, created_at
		FROM files WHERE note_id = $1 ORDER BY created_at ASC`, noteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	files := []fiber.Map{}
	for rows.Next() {
		var (
			id, originalName, fileName, mimeType string
			size                                 int64
			createdAt                            time.Time
		)
		if err := rows.Scan(&id, &originalName, &fileName, &mimeType, &size, &createdAt); err != nil {
			return nil, err
		}
		files = append(files, fiber.Map{
			"id":           id,
			"originalName": originalName,
			"fileName":     fileName,
			"mimeType":     mimeType,
			"size":         size,
			"createdAt":    utils.FormatTime(createdAt),
		})
	}
	return files, rows.Err()
}

func uploadContentType(fh *multipart.FileHeader) string {
	ct := fh.Header.Get("Content-Type")
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}
