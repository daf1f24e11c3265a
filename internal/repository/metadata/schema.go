package metadata

const schema = `
CREATE TABLE IF NOT EXISTS remotes (
	remote_id        INTEGER PRIMARY KEY AUTOINCREMENT,
	name             TEXT    NOT NULL UNIQUE,
	is_public        INTEGER NOT NULL DEFAULT 0,
	is_signed        INTEGER NOT NULL DEFAULT 0,
	is_dirty         INTEGER NOT NULL DEFAULT 0,
	build_cnt        INTEGER NOT NULL DEFAULT 0,
	access_token     TEXT    NOT NULL DEFAULT '',
	filename_prefix  TEXT    NOT NULL DEFAULT '',
	filename_newest  TEXT    NOT NULL DEFAULT '',
	claim_owner      TEXT,
	claimed_at       INTEGER,
	claim_expires_at INTEGER
);

CREATE TABLE IF NOT EXISTS vendors (
	vendor_id         INTEGER PRIMARY KEY AUTOINCREMENT,
	group_id          TEXT    NOT NULL UNIQUE,
	is_unrestricted   INTEGER NOT NULL DEFAULT 0,
	embargo_remote_id INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS vendor_restrictions (
	vendor_id INTEGER NOT NULL,
	position  INTEGER NOT NULL,
	value     TEXT    NOT NULL,
	PRIMARY KEY (vendor_id, position)
);

CREATE TABLE IF NOT EXISTS firmware (
	firmware_id            INTEGER PRIMARY KEY AUTOINCREMENT,
	remote_id              INTEGER NOT NULL,
	vendor_id              INTEGER NOT NULL,
	filename               TEXT    NOT NULL UNIQUE,
	is_dirty               INTEGER NOT NULL DEFAULT 0,
	signed_at              INTEGER,
	checksum_upload_sha1   TEXT    NOT NULL DEFAULT '',
	checksum_upload_sha256 TEXT    NOT NULL DEFAULT '',
	checksum_signed_sha1   TEXT    NOT NULL DEFAULT '',
	checksum_signed_sha256 TEXT    NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS firmware_remote ON firmware (remote_id);

CREATE TABLE IF NOT EXISTS components (
	component_id INTEGER PRIMARY KEY AUTOINCREMENT,
	firmware_id  INTEGER NOT NULL,
	appstream_id TEXT    NOT NULL,
	version      TEXT    NOT NULL,
	payload      BLOB    NOT NULL
);

CREATE INDEX IF NOT EXISTS components_firmware ON components (firmware_id);
`
