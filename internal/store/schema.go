package store

const schema = `
CREATE TABLE IF NOT EXISTS app_records (
    id TEXT PRIMARY KEY,
    name TEXT,
    installed_version TEXT,
    install_path TEXT,
    executable_path TEXT,
    installed_at TIMESTAMP NOT NULL,
    last_launched TIMESTAMP,
    auto_detected BOOLEAN NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_app_records_name ON app_records(name);
`
