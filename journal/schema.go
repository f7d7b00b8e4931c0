package journal

const Schema = `
CREATE TABLE IF NOT EXISTS closes (
	id TEXT PRIMARY KEY,
	time DATETIME NOT NULL,
	account_id TEXT NOT NULL,
	platform TEXT NOT NULL,
	symbols TEXT NOT NULL,
	matched INTEGER NOT NULL,
	closed INTEGER NOT NULL,
	failed INTEGER NOT NULL,
	error TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_closes_time ON closes(time);
CREATE INDEX IF NOT EXISTS idx_closes_account ON closes(account_id);
`
