// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"fmt"
	"time"

	"github.com/autobrr/linkarr/internal/dbinterface"
)

// ActionKind tags an operation log entry.
type ActionKind string

const (
	ActionScan      ActionKind = "SCAN"
	ActionMatch     ActionKind = "MATCH"
	ActionMatchFail ActionKind = "MATCH_FAIL"
	ActionLink      ActionKind = "LINK"
	ActionError     ActionKind = "ERROR"
	ActionDelete    ActionKind = "DELETE"
	ActionHide      ActionKind = "HIDE"
	ActionUnhide    ActionKind = "UNHIDE"
	ActionConfirm   ActionKind = "CONFIRM"
	ActionMove      ActionKind = "MOVE"
	ActionHeal      ActionKind = "HEAL"
	ActionReset     ActionKind = "RESET"
)

type OperationLog struct {
	ID        int64      `json:"id"`
	Timestamp time.Time  `json:"timestamp"`
	Action    ActionKind `json:"action"`
	Target    string     `json:"target"`
	Details   string     `json:"details"`
}

// OperationLogStore is an append-only audit trail.
type OperationLogStore struct {
	db dbinterface.Querier
}

func NewOperationLogStore(db dbinterface.Querier) *OperationLogStore {
	return &OperationLogStore{db: db}
}

func (s *OperationLogStore) Add(ctx context.Context, action ActionKind, target, details string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO operation_logs (timestamp, action_type, target, details)
		VALUES (?, ?, ?, ?)
	`, time.Now().UTC(), action, target, details)
	if err != nil {
		return fmt.Errorf("insert operation log: %w", err)
	}
	return nil
}

// Recent returns the newest entries first.
func (s *OperationLogStore) Recent(ctx context.Context, limit int) ([]*OperationLog, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp, action_type, target, details
		FROM operation_logs
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query operation logs: %w", err)
	}
	defer rows.Close()

	var entries []*OperationLog
	for rows.Next() {
		var entry OperationLog
		if err := rows.Scan(&entry.ID, &entry.Timestamp, &entry.Action, &entry.Target, &entry.Details); err != nil {
			return nil, fmt.Errorf("scan operation log: %w", err)
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate operation logs: %w", err)
	}
	return entries, nil
}

func (s *OperationLogStore) DeleteAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM operation_logs`); err != nil {
		return fmt.Errorf("delete operation logs: %w", err)
	}
	return nil
}
