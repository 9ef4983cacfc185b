// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package dbinterface provides database interfaces to avoid import cycles.
// Stores depend on these interfaces instead of the concrete database package.
package dbinterface

import (
	"context"
	"database/sql"
	"strings"
)

// Querier is implemented by *sql.DB, *sql.Tx and *database.DB.
type Querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// TxRunner is a Querier that can also run a group of statements atomically.
type TxRunner interface {
	Querier
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Querier) error) error
}

// InPlaceholders returns "?, ?, ?" for n values, for use inside IN (...).
func InPlaceholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
