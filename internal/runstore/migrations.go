package runstore

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id INTEGER PRIMARY KEY,
    dir TEXT NOT NULL,
    provider TEXT NOT NULL,
    model TEXT NOT NULL,
    status TEXT NOT NULL,
    started_at TIMESTAMP NOT NULL,
    finished_at TIMESTAMP,
    completed INTEGER DEFAULT 0,
    failed INTEGER DEFAULT 0,
    retried INTEGER DEFAULT 0,
    categories TEXT,
    stop_reason TEXT
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_model ON runs(model);
`
