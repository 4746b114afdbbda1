// journal/schema.go
package journal

const Schema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id TEXT PRIMARY KEY,
	created DATETIME NOT NULL,
	mode TEXT NOT NULL,
	instrument TEXT NOT NULL,
	dataset TEXT NOT NULL DEFAULT '',
	profit_target REAL NOT NULL,
	stop_loss REAL NOT NULL,
	bar_count INTEGER NOT NULL,
	start_time DATETIME NOT NULL,
	end_time DATETIME NOT NULL,
	candles INTEGER NOT NULL DEFAULT 0,
	trades INTEGER NOT NULL DEFAULT 0,
	wins INTEGER NOT NULL DEFAULT 0,
	losses INTEGER NOT NULL DEFAULT 0,
	running_pl REAL NOT NULL DEFAULT 0,
	hold_pl REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS trades (
	trade_id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL DEFAULT '',
	instrument TEXT NOT NULL,
	side TEXT NOT NULL,
	entry_price REAL NOT NULL,
	exit_price REAL NOT NULL,
	open_time DATETIME NOT NULL,
	close_time DATETIME NOT NULL,
	realized_pl REAL NOT NULL,
	reason TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS pnl (
	session_id TEXT NOT NULL DEFAULT '',
	time DATETIME NOT NULL,
	running REAL NOT NULL,
	current REAL NOT NULL,
	hold_benchmark REAL NOT NULL,
	position TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_session ON trades(session_id);
CREATE INDEX IF NOT EXISTS idx_pnl_time ON pnl(time);
`
