// Package dbtest opens isolated in-memory sqlite databases for package tests.
package dbtest

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/angelmondragon/catalog-backend/pkg/db"
	"github.com/angelmondragon/catalog-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Open returns a migrated sqlite client scoped to the test.
func Open(t *testing.T) *db.Client {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), db.GormConfig(nil, 0))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := conn.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return db.NewFromConn(conn)
}

// BeforeNextUpdate runs write once, on the same transaction, immediately
// before gorm issues its next UPDATE against table. It lets tests commit a
// competing change between a service's read and its write.
func BeforeNextUpdate(t *testing.T, conn *gorm.DB, table string, write func(tx *gorm.DB) error) {
	t.Helper()
	var fired atomic.Bool
	name := "dbtest:before_update:" + uuid.NewString()
	err := conn.Callback().Update().Before("gorm:update").Register(name, func(d *gorm.DB) {
		if d.Statement.Table != table || !fired.CompareAndSwap(false, true) {
			return
		}
		if err := write(d.Session(&gorm.Session{NewDB: true})); err != nil {
			_ = d.AddError(err)
		}
	})
	if err != nil {
		t.Fatalf("register update hook: %v", err)
	}
	t.Cleanup(func() { _ = conn.Callback().Update().Remove(name) })
}
