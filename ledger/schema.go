package ledger

// Monetary columns are stored as TEXT: decimal values round-trip exactly,
// REAL would not. Positions with zero quantity are deleted, never kept.
const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	user_id TEXT PRIMARY KEY,
	cash_balance TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS positions (
	user_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	quantity TEXT NOT NULL,
	avg_cost TEXT NOT NULL,
	PRIMARY KEY (user_id, symbol),
	FOREIGN KEY (user_id) REFERENCES accounts(user_id)
);

CREATE INDEX IF NOT EXISTS idx_positions_user ON positions(user_id);
`
