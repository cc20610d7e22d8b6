package store

// schema mirrors original_source/db_utils.py's create_db, translated to
// SQLite DDL. logical_timestamp is INTEGER PRIMARY KEY so SQLite aliases it
// directly to the rowid, giving every insert a dense, monotonically
// increasing logical clock tick for free (spec.md §3).
const schema = `
CREATE TABLE IF NOT EXISTS exchange (
	logical_timestamp INTEGER PRIMARY KEY AUTOINCREMENT,
	participant_id    INTEGER NOT NULL,
	price             INTEGER NOT NULL,
	amount            INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS accounts (
	participant_id INTEGER PRIMARY KEY,
	balance        INTEGER NOT NULL,
	stock          INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS log (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	buyer_id   INTEGER NOT NULL,
	seller_id  INTEGER NOT NULL,
	amount     INTEGER NOT NULL,
	price      INTEGER NOT NULL,
	event      TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS auth (
	participant_id  INTEGER PRIMARY KEY AUTOINCREMENT,
	name            TEXT NOT NULL UNIQUE,
	hashed_password TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS ratelimit (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	ip                 TEXT NOT NULL,
	relative_timestamp REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS ratelimit_ip_idx ON ratelimit (ip, relative_timestamp);
`

const dropSchema = `
DROP TABLE IF EXISTS exchange;
DROP TABLE IF EXISTS accounts;
DROP TABLE IF EXISTS log;
DROP TABLE IF EXISTS auth;
DROP TABLE IF EXISTS ratelimit;
`
