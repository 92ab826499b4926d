// Package db embeds the SQL schema applied at startup.
package db

import _ "embed"

// Schema holds the DDL for every application table, including the stock
// non-negativity check and the one-active-basket-per-user partial index.
//
//go:embed migrations/001_schema.sql
var Schema string
