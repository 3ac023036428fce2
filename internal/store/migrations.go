package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS deliveries (
	id            TEXT PRIMARY KEY,
	hook_id       TEXT NOT NULL,
	hook_type     TEXT NOT NULL,
	event         TEXT NOT NULL,
	payload_title TEXT NOT NULL DEFAULT '',
	ok            INTEGER NOT NULL DEFAULT 0 CHECK(ok IN (0, 1)),
	resource      TEXT NOT NULL DEFAULT '',
	error         TEXT NOT NULL DEFAULT '',
	created_at    DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_deliveries_hook_id ON deliveries(hook_id);
CREATE INDEX IF NOT EXISTS idx_deliveries_hook_type ON deliveries(hook_type);
CREATE INDEX IF NOT EXISTS idx_deliveries_event ON deliveries(event);
CREATE INDEX IF NOT EXISTS idx_deliveries_created_at ON deliveries(created_at);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE INDEX IF NOT EXISTS idx_deliveries_hook_ok_event
	ON deliveries(hook_id, ok, event, created_at);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
