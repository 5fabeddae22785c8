package database

import (
	"context"
	"database/sql"
)

// schema holds the broker's tables. Statements are idempotent so startup
// can run them unconditionally; column changes still go through manual
// migrations.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id               BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		external_user_id VARCHAR(100)    NOT NULL,
		email            VARCHAR(255)    NOT NULL DEFAULT '',
		first_name       VARCHAR(100)    NOT NULL DEFAULT '',
		last_name        VARCHAR(100)    NOT NULL DEFAULT '',
		is_active        TINYINT(1)      NOT NULL DEFAULT 1,
		created_at       DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at       DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		last_login_at    DATETIME        NULL,
		UNIQUE KEY uq_users_external_user_id (external_user_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS allowed_users (
		id               BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		external_user_id VARCHAR(100)    NOT NULL,
		description      TEXT            NULL,
		added_by         VARCHAR(100)    NOT NULL DEFAULT '',
		is_active        TINYINT(1)      NOT NULL DEFAULT 1,
		created_at       DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at       DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_allowed_users_external_user_id (external_user_id),
		KEY ix_allowed_users_is_active (is_active)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS user_sessions (
		id               BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		session_id       VARCHAR(255)    NOT NULL,
		user_id          BIGINT UNSIGNED NOT NULL,
		ip_address       VARCHAR(45)     NOT NULL DEFAULT '',
		user_agent       TEXT            NULL,
		is_active        TINYINT(1)      NOT NULL DEFAULT 1,
		created_at       DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP,
		expires_at       DATETIME        NOT NULL,
		last_activity_at DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_user_sessions_session_id (session_id),
		KEY ix_user_sessions_user_id_is_active (user_id, is_active),
		KEY ix_user_sessions_expires_at (expires_at),
		CONSTRAINT fk_user_sessions_user FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS oauth_tokens (
		id                      BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		user_id                 BIGINT UNSIGNED NOT NULL,
		encrypted_access_token  TEXT            NOT NULL,
		encrypted_refresh_token TEXT            NULL,
		token_type              VARCHAR(50)     NOT NULL DEFAULT 'Bearer',
		expires_at              DATETIME        NULL,
		is_revoked              TINYINT(1)      NOT NULL DEFAULT 0,
		created_at              DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at              DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		KEY ix_oauth_tokens_user_id_is_revoked (user_id, is_revoked),
		KEY ix_oauth_tokens_expires_at (expires_at),
		CONSTRAINT fk_oauth_tokens_user FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS oauth_states (
		id         BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		state      VARCHAR(255)    NOT NULL,
		ip_address VARCHAR(45)     NOT NULL DEFAULT '',
		user_agent TEXT            NULL,
		created_at DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP,
		expires_at DATETIME        NOT NULL,
		is_used    TINYINT(1)      NOT NULL DEFAULT 0,
		used_at    DATETIME        NULL,
		UNIQUE KEY uq_oauth_states_state (state),
		KEY ix_oauth_states_expires_at (expires_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS oauth_exchange_codes (
		id         BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		code       VARCHAR(255)    NOT NULL,
		user_id    BIGINT UNSIGNED NOT NULL,
		created_at DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP,
		expires_at DATETIME        NOT NULL,
		is_used    TINYINT(1)      NOT NULL DEFAULT 0,
		used_at    DATETIME        NULL,
		UNIQUE KEY uq_oauth_exchange_codes_code (code),
		KEY ix_oauth_exchange_codes_expires_at (expires_at),
		CONSTRAINT fk_oauth_exchange_codes_user FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS audit_logs (
		id               BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		event_kind       VARCHAR(100)    NOT NULL,
		user_id          BIGINT UNSIGNED NULL,
		external_user_id VARCHAR(100)    NOT NULL DEFAULT '',
		session_id       VARCHAR(255)    NOT NULL DEFAULT '',
		ip_address       VARCHAR(45)     NOT NULL DEFAULT '',
		user_agent       TEXT            NULL,
		success          TINYINT(1)      NOT NULL,
		error_message    TEXT            NULL,
		metadata         JSON            NULL,
		created_at       DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP,
		KEY ix_audit_logs_event_kind_created_at (event_kind, created_at),
		KEY ix_audit_logs_user_id_created_at (user_id, created_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// EnsureSchema creates all broker tables if they do not exist yet.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
