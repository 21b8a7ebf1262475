/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

const (
	// Schema
	schemaLedger = `
	-- Wallets (current balances, mutated only through ApplyDelta)
	CREATE TABLE IF NOT EXISTS wallets (
		id TEXT PRIMARY KEY,
		user_id TEXT UNIQUE,
		kind TEXT NOT NULL CHECK (kind IN ('USER', 'PLATFORM')),
		fiat_balance TEXT NOT NULL DEFAULT '0',
		token_balance TEXT NOT NULL DEFAULT '0',
		version INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- At most one platform wallet
	CREATE UNIQUE INDEX IF NOT EXISTS idx_wallets_platform ON wallets(kind) WHERE kind = 'PLATFORM';

	-- Transactions (one row per logical financial event)
	CREATE TABLE IF NOT EXISTS transactions (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		type TEXT NOT NULL,
		from_wallet_id TEXT REFERENCES wallets(id),
		to_wallet_id TEXT REFERENCES wallets(id),
		user_id TEXT NOT NULL,
		asset_id TEXT,
		fiat_amount TEXT,
		token_amount TEXT,
		currency TEXT NOT NULL,
		status TEXT NOT NULL,
		idempotency_key TEXT UNIQUE,
		metadata TEXT NOT NULL DEFAULT '{}',
		description TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_user_id ON transactions(user_id);
	CREATE INDEX IF NOT EXISTS idx_transactions_from_wallet ON transactions(from_wallet_id);
	CREATE INDEX IF NOT EXISTS idx_transactions_to_wallet ON transactions(to_wallet_id);
	CREATE INDEX IF NOT EXISTS idx_transactions_created_at ON transactions(created_at);

	-- Ledger entries (append-only, hash-chained per wallet)
	CREATE TABLE IF NOT EXISTS ledger_entries (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		transaction_id TEXT NOT NULL REFERENCES transactions(id),
		wallet_id TEXT NOT NULL REFERENCES wallets(id),
		user_id TEXT NOT NULL,
		entry_type TEXT NOT NULL CHECK (entry_type IN ('DEBIT', 'CREDIT')),
		fiat_debit TEXT NOT NULL DEFAULT '0',
		fiat_credit TEXT NOT NULL DEFAULT '0',
		token_debit TEXT NOT NULL DEFAULT '0',
		token_credit TEXT NOT NULL DEFAULT '0',
		fiat_balance_after TEXT NOT NULL,
		token_balance_after TEXT NOT NULL,
		entry_hash TEXT NOT NULL,
		previous_hash TEXT,
		description TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_ledger_entries_wallet_seq ON ledger_entries(wallet_id, seq);
	CREATE INDEX IF NOT EXISTS idx_ledger_entries_transaction ON ledger_entries(transaction_id);

	CREATE TRIGGER IF NOT EXISTS trg_ledger_entries_no_update
	BEFORE UPDATE ON ledger_entries
	BEGIN
		SELECT RAISE(ABORT, 'ledger entries are append-only');
	END;

	CREATE TRIGGER IF NOT EXISTS trg_ledger_entries_no_delete
	BEFORE DELETE ON ledger_entries
	BEGIN
		SELECT RAISE(ABORT, 'ledger entries are append-only');
	END;

	-- Generation counters (ownership claim rule)
	CREATE TABLE IF NOT EXISTS generation_counters (
		user_id TEXT PRIMARY KEY,
		total_generated INTEGER NOT NULL DEFAULT 0,
		admin_claimed INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL
	);

	-- Assets (settlement-relevant fields only)
	CREATE TABLE IF NOT EXISTS assets (
		id TEXT PRIMARY KEY,
		creator_user_id TEXT NOT NULL,
		ownership_type TEXT NOT NULL CHECK (ownership_type IN ('USER', 'ADMIN')),
		claimed_by_platform_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_assets_creator ON assets(creator_user_id);

	-- Outbox (ledger events awaiting relay to the broker)
	CREATE TABLE IF NOT EXISTS outbox_messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		message_key TEXT NOT NULL,
		topic TEXT NOT NULL,
		payload TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'PENDING' CHECK (status IN ('PENDING', 'SENT', 'FAILED')),
		retry_count INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_outbox_messages_status ON outbox_messages(status, id);
	`

	// Wallet queries
	walletColumns = `id, user_id, kind, fiat_balance, token_balance, version, created_at, updated_at`

	queryInsertWallet = `
		INSERT INTO wallets (id, user_id, kind, fiat_balance, token_balance, version, created_at, updated_at)
		VALUES (?, ?, ?, '0', '0', 1, ?, ?)`

	queryGetWallet = `
		SELECT ` + walletColumns + `
		FROM wallets
		WHERE id = ?`

	queryGetWalletByUser = `
		SELECT ` + walletColumns + `
		FROM wallets
		WHERE user_id = ?`

	queryGetPlatformWallet = `
		SELECT ` + walletColumns + `
		FROM wallets
		WHERE kind = 'PLATFORM'`

	queryListWallets = `
		SELECT ` + walletColumns + `
		FROM wallets
		ORDER BY kind DESC, created_at`

	queryUpdateWalletBalance = `
		UPDATE wallets
		SET fiat_balance = ?, token_balance = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`

	// Transaction queries
	transactionColumns = `seq, id, type, from_wallet_id, to_wallet_id, user_id, asset_id,
		fiat_amount, token_amount, currency, status, idempotency_key, metadata, description, created_at`

	queryInsertTransaction = `
		INSERT INTO transactions (
			id, type, from_wallet_id, to_wallet_id, user_id, asset_id,
			fiat_amount, token_amount, currency, status, idempotency_key, metadata, description, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING seq`

	queryGetTransaction = `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE id = ?`

	queryGetTransactionByIdempotencyKey = `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE idempotency_key = ?`

	queryUpdateTransactionStatus = `
		UPDATE transactions
		SET status = ?, metadata = ?
		WHERE id = ?`

	queryTransactionHistoryBase = `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE (user_id = ?
			OR from_wallet_id IN (SELECT id FROM wallets WHERE user_id = ?)
			OR to_wallet_id IN (SELECT id FROM wallets WHERE user_id = ?))`

	// Entry queries
	entryColumns = `seq, id, transaction_id, wallet_id, user_id, entry_type,
		fiat_debit, fiat_credit, token_debit, token_credit, fiat_balance_after, token_balance_after,
		entry_hash, previous_hash, description, created_at`

	queryInsertEntry = `
		INSERT INTO ledger_entries (
			id, transaction_id, wallet_id, user_id, entry_type,
			fiat_debit, fiat_credit, token_debit, token_credit, fiat_balance_after, token_balance_after,
			entry_hash, previous_hash, description, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING seq`

	queryLastEntryHash = `
		SELECT entry_hash
		FROM ledger_entries
		WHERE wallet_id = ?
		ORDER BY seq DESC
		LIMIT 1`

	queryGetEntriesByTransaction = `
		SELECT ` + entryColumns + `
		FROM ledger_entries
		WHERE transaction_id = ?
		ORDER BY seq`

	queryListEntriesForWallet = `
		SELECT ` + entryColumns + `
		FROM ledger_entries
		WHERE wallet_id = ?
		ORDER BY seq`

	queryListAllEntries = `
		SELECT ` + entryColumns + `
		FROM ledger_entries
		ORDER BY seq`

	// Generation queries
	queryIncrementGenerationCounter = `
		INSERT INTO generation_counters (user_id, total_generated, admin_claimed, updated_at)
		VALUES (?, 1, 0, ?)
		ON CONFLICT(user_id) DO UPDATE
		SET total_generated = total_generated + 1, updated_at = excluded.updated_at
		RETURNING total_generated, admin_claimed`

	queryIncrementAdminClaimed = `
		UPDATE generation_counters
		SET admin_claimed = admin_claimed + 1
		WHERE user_id = ?
		RETURNING admin_claimed`

	queryGetGenerationCounter = `
		SELECT user_id, total_generated, admin_claimed, updated_at
		FROM generation_counters
		WHERE user_id = ?`

	queryInsertAsset = `
		INSERT INTO assets (id, creator_user_id, ownership_type, claimed_by_platform_at, created_at)
		VALUES (?, ?, ?, ?, ?)`

	queryGetAsset = `
		SELECT id, creator_user_id, ownership_type, claimed_by_platform_at, created_at
		FROM assets
		WHERE id = ?`

	// Outbox queries
	queryInsertOutbox = `
		INSERT INTO outbox_messages (message_key, topic, payload, status, retry_count, created_at, updated_at)
		VALUES (?, ?, ?, 'PENDING', 0, ?, ?)
		RETURNING id`

	queryPendingOutbox = `
		SELECT id, message_key, topic, payload, status, retry_count, created_at, updated_at
		FROM outbox_messages
		WHERE status = 'PENDING'
		ORDER BY id
		LIMIT ?`

	queryMarkOutboxSent = `
		UPDATE outbox_messages
		SET status = 'SENT', updated_at = ?
		WHERE id = ?`

	queryIncrementOutboxRetry = `
		UPDATE outbox_messages
		SET retry_count = retry_count + 1,
			status = CASE WHEN retry_count + 1 >= ? THEN 'FAILED' ELSE status END,
			updated_at = ?
		WHERE id = ?
		RETURNING status`
)
