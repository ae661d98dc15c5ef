// Package dbtest opens throwaway sqlite databases shaped like the Postgres
// schema so repositories can be exercised without a server.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var schema = []string{
	`CREATE TABLE branches (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  timezone TEXT NOT NULL DEFAULT '',
  is_active BOOLEAN NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE employees (
  id TEXT PRIMARY KEY,
  branch_id TEXT NOT NULL,
  name TEXT NOT NULL,
  role TEXT,
  department TEXT,
  territories TEXT NOT NULL DEFAULT '{}',
  max_workload INTEGER,
  is_active BOOLEAN NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE customers (
  id TEXT PRIMARY KEY,
  branch_id TEXT NOT NULL,
  name TEXT NOT NULL,
  created_at DATETIME
);`,
	`CREATE TABLE customer_orders (
  id TEXT PRIMARY KEY,
  branch_id TEXT NOT NULL,
  customer_id TEXT NOT NULL,
  assigned_to TEXT,
  created_at DATETIME
);`,
	`CREATE TABLE leads (
  id TEXT PRIMARY KEY,
  branch_id TEXT NOT NULL,
  source TEXT NOT NULL,
  value TEXT,
  region TEXT,
  state TEXT,
  city TEXT,
  country TEXT,
  industry TEXT,
  customer_id TEXT,
  status TEXT NOT NULL DEFAULT 'new',
  assigned_to TEXT,
  assignment_rule TEXT,
  assigned_at DATETIME,
  payload BLOB,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE assignment_rules (
  id TEXT PRIMARY KEY,
  branch_id TEXT NOT NULL,
  name TEXT NOT NULL,
  priority INTEGER NOT NULL,
  is_active BOOLEAN NOT NULL DEFAULT 1,
  target_employee_id TEXT,
  method TEXT NOT NULL,
  workload_limit INTEGER,
  conditions BLOB NOT NULL DEFAULT '{}',
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (branch_id, name)
);`,
	`CREATE TABLE assignment_decisions (
  id TEXT PRIMARY KEY,
  branch_id TEXT NOT NULL,
  lead_id TEXT NOT NULL,
  employee_id TEXT NOT NULL,
  rule_id TEXT,
  rule_name TEXT,
  method TEXT NOT NULL,
  is_manual_override BOOLEAN NOT NULL DEFAULT 0,
  previous_employee_id TEXT,
  actor_user_id TEXT,
  created_at DATETIME
);`,
	`CREATE TABLE outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload BLOB NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`,
}

// Open returns a private in-memory database with every lead-assignment table created.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return conn
}
