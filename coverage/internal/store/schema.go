package store

// Schema contains the complete DDL for the coverage tables.
const Schema = `
-- Pages: every document a mirror has reported from
CREATE TABLE IF NOT EXISTS pages (
    page_id      TEXT PRIMARY KEY,
    page_url     TEXT NOT NULL DEFAULT '',
    primary_attr TEXT NOT NULL DEFAULT 'data-test-id',
    legacy_attr  TEXT NOT NULL DEFAULT 'data-testid',
    last_seen    INTEGER NOT NULL,
    created_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_pages_url ON pages(page_url);

-- Batches: one row per emitted write batch
CREATE TABLE IF NOT EXISTS batches (
    id           TEXT PRIMARY KEY,
    page_id      TEXT NOT NULL DEFAULT '',
    page_url     TEXT NOT NULL DEFAULT '',
    seq          INTEGER NOT NULL DEFAULT 0,
    snapshot_ref TEXT NOT NULL DEFAULT '',
    write_count  INTEGER NOT NULL DEFAULT 0,
    created_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_batches_page ON batches(page_id, seq);
CREATE INDEX IF NOT EXISTS idx_batches_time ON batches(created_at DESC);

-- Writes: individual legacy-attribute writes, ordered within their batch
CREATE TABLE IF NOT EXISTS writes (
    id          TEXT PRIMARY KEY,
    batch_id    TEXT NOT NULL,
    batch_index INTEGER NOT NULL DEFAULT 0,
    page_id     TEXT NOT NULL DEFAULT '',
    xpath       TEXT NOT NULL DEFAULT '',
    tag         TEXT NOT NULL DEFAULT '',
    value       TEXT NOT NULL DEFAULT '',
    old_value   TEXT NOT NULL DEFAULT '',
    inserted    INTEGER NOT NULL DEFAULT 0,
    created_at  INTEGER NOT NULL,
    FOREIGN KEY (batch_id) REFERENCES batches(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_writes_batch ON writes(batch_id, batch_index);
CREATE INDEX IF NOT EXISTS idx_writes_page ON writes(page_id, created_at DESC);

-- Snapshots: rendered document HTML, deduplicated by content hash
CREATE TABLE IF NOT EXISTS snapshots (
    id         TEXT PRIMARY KEY,
    page_id    TEXT NOT NULL DEFAULT '',
    page_url   TEXT NOT NULL DEFAULT '',
    html       TEXT NOT NULL,
    html_hash  TEXT NOT NULL,
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_page ON snapshots(page_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_snapshots_hash ON snapshots(page_id, html_hash);

-- Coverage log: bridging tallies over time
CREATE TABLE IF NOT EXISTS coverage_log (
    id         TEXT PRIMARY KEY,
    page_id    TEXT NOT NULL DEFAULT '',
    page_url   TEXT NOT NULL DEFAULT '',
    tagged     INTEGER NOT NULL DEFAULT 0,
    mirrored   INTEGER NOT NULL DEFAULT 0,
    stale      INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_coverage_page ON coverage_log(page_id, created_at DESC);
`
