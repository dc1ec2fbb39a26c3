package store

const schemaVersionV1 = 1

// currentSchemaVersion is the target schema version for this build.
const currentSchemaVersion = schemaVersionV1

const schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS investigations (
    id          TEXT PRIMARY KEY,
    kind        TEXT NOT NULL,
    verdict     TEXT NOT NULL,
    confidence  REAL NOT NULL,
    created_at  TEXT NOT NULL,
    payload     BLOB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_investigations_created_at
    ON investigations(created_at DESC);

CREATE INDEX IF NOT EXISTS idx_investigations_verdict
    ON investigations(verdict);
`
