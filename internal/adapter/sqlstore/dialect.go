package sqlstore

// dialect holds the statements that differ between drivers
type dialect struct {
	name             string
	schema           []string
	columnMigrations []string
	upsertConnection string
}

var sqliteDialect = &dialect{
	name: "sqlite",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS drive_connections (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT UNIQUE NOT NULL,
			access_token TEXT NOT NULL,
			refresh_token TEXT,
			expires_at TIMESTAMP NOT NULL,
			account_label TEXT,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS share_tokens (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			token TEXT UNIQUE NOT NULL,
			file_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			file_name TEXT,
			is_local_file BOOLEAN NOT NULL DEFAULT FALSE,
			expires_at TIMESTAMP NOT NULL,
			download_count INTEGER NOT NULL DEFAULT 0 CHECK (download_count >= 0),
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_share_tokens_user ON share_tokens(user_id, is_active)`,
		`CREATE INDEX IF NOT EXISTS idx_share_tokens_file ON share_tokens(file_id, is_local_file)`,
	},
	columnMigrations: []string{
		`ALTER TABLE share_tokens ADD COLUMN local_file_path TEXT`,
	},
	upsertConnection: `
		INSERT INTO drive_connections
			(user_id, access_token, refresh_token, expires_at, account_label, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = COALESCE(excluded.refresh_token, drive_connections.refresh_token),
			expires_at = excluded.expires_at,
			account_label = COALESCE(excluded.account_label, drive_connections.account_label),
			is_active = excluded.is_active,
			updated_at = excluded.updated_at
	`,
}

var mysqlDialect = &dialect{
	name: "mysql",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS drive_connections (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			user_id VARCHAR(191) NOT NULL,
			access_token TEXT NOT NULL,
			refresh_token TEXT NULL,
			expires_at DATETIME(6) NOT NULL,
			account_label VARCHAR(320) NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at DATETIME(6) NOT NULL,
			updated_at DATETIME(6) NOT NULL,
			UNIQUE KEY uq_drive_connections_user (user_id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

		`CREATE TABLE IF NOT EXISTS share_tokens (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			token CHAR(64) NOT NULL,
			file_id VARCHAR(255) NOT NULL,
			user_id VARCHAR(191) NOT NULL,
			file_name VARCHAR(1024) NULL,
			is_local_file BOOLEAN NOT NULL DEFAULT FALSE,
			expires_at DATETIME(6) NOT NULL,
			download_count BIGINT UNSIGNED NOT NULL DEFAULT 0,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at DATETIME(6) NOT NULL,
			UNIQUE KEY uq_share_tokens_token (token),
			KEY idx_share_tokens_user (user_id, is_active),
			KEY idx_share_tokens_file (file_id, is_local_file)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	},
	columnMigrations: []string{
		`ALTER TABLE share_tokens ADD COLUMN local_file_path VARCHAR(2048) NULL`,
	},
	upsertConnection: `
		INSERT INTO drive_connections
			(user_id, access_token, refresh_token, expires_at, account_label, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			access_token = VALUES(access_token),
			refresh_token = COALESCE(VALUES(refresh_token), refresh_token),
			expires_at = VALUES(expires_at),
			account_label = COALESCE(VALUES(account_label), account_label),
			is_active = VALUES(is_active),
			updated_at = VALUES(updated_at)
	`,
}
