package database

// DatabaseSchema contains the complete PostgreSQL schema for quickpad.
// Notes are keyed by their slug, file rows cascade with their parent note,
// and users are soft-deleted via is_active.
const DatabaseSchema = `
-- Notes table: one row per pad, upserted in place on every save
CREATE TABLE IF NOT EXISTS notes (
    id TEXT PRIMARY KEY,
    content TEXT NOT NULL DEFAULT '',
    password_hash TEXT,
    is_encrypted BOOLEAN NOT NULL DEFAULT false,
    monospace BOOLEAN NOT NULL DEFAULT false,
    caret INTEGER NOT NULL DEFAULT 0,
    url TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

-- Uploaded file metadata; payloads live on disk at file_path
CREATE TABLE IF NOT EXISTS files (
    id UUID PRIMARY KEY,
    note_id TEXT NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
    original_name TEXT NOT NULL,
    file_name TEXT NOT NULL,
    file_path TEXT NOT NULL,
    mime_type TEXT NOT NULL,
    size BIGINT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_files_note_id ON files(note_id);

-- Optional user accounts; notes do not require an owner
CREATE TABLE IF NOT EXISTS users (
    id UUID PRIMARY KEY,
    email TEXT UNIQUE NOT NULL,
    username TEXT UNIQUE NOT NULL,
    password_hash TEXT NOT NULL,
    first_name TEXT,
    last_name TEXT,
    avatar TEXT,
    is_active BOOLEAN NOT NULL DEFAULT true,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_notes_updated_at ON notes(updated_at DESC);
CREATE INDEX IF NOT EXISTS idx_notes_url ON notes(url);
`
