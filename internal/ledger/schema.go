package ledger

const schemaDDL = `
CREATE TABLE IF NOT EXISTS ledger (
	date               TEXT NOT NULL,
	key                TEXT NOT NULL,
	ticker             TEXT NOT NULL,
	time               TEXT NOT NULL DEFAULT '',
	action             TEXT NOT NULL DEFAULT '',
	price              REAL,
	trade_price        REAL,
	leg_price          REAL,
	strike             REAL,
	doe                TEXT NOT NULL DEFAULT '',
	option_price       REAL,
	option_trade_price REAL,
	commission         REAL,
	option_size        REAL,
	underlying_size    REAL,
	position_bal       REAL,
	acct_bal           REAL,
	pl_underlying      REAL,
	pl_underlying_leg  REAL,
	pl_option          REAL,
	delta              REAL,
	PRIMARY KEY (date, key)
);

CREATE INDEX IF NOT EXISTS idx_ledger_date ON ledger(date);
CREATE INDEX IF NOT EXISTS idx_ledger_ticker ON ledger(ticker);

CREATE TABLE IF NOT EXISTS activity (
	seq                INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id             TEXT NOT NULL,
	recorded_at        DATETIME NOT NULL,
	date               TEXT NOT NULL,
	key                TEXT NOT NULL,
	ticker             TEXT NOT NULL,
	time               TEXT NOT NULL DEFAULT '',
	action             TEXT NOT NULL DEFAULT '',
	price              REAL,
	trade_price        REAL,
	leg_price          REAL,
	strike             REAL,
	doe                TEXT NOT NULL DEFAULT '',
	option_price       REAL,
	option_trade_price REAL,
	commission         REAL,
	option_size        REAL,
	underlying_size    REAL,
	position_bal       REAL,
	acct_bal           REAL,
	pl_underlying      REAL,
	pl_underlying_leg  REAL,
	pl_option          REAL,
	delta              REAL
);

CREATE INDEX IF NOT EXISTS idx_activity_ticker ON activity(ticker);
CREATE INDEX IF NOT EXISTS idx_activity_date ON activity(date);
`
