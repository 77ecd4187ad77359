package testutil

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"io"
	"log"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/xuri/excelize/v2"

	"github.com/slotwise/slotwise/core"
	"github.com/slotwise/slotwise/core/schema"
	"github.com/slotwise/slotwise/core/user"
	logsvc "github.com/slotwise/slotwise/services/logger"
	"github.com/slotwise/slotwise/storage/database"
)

func CreateUser(t *testing.T, repo user.Repository, uname, pwd string, isActive, isAdmin bool, createdAt ...time.Time) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Username:  uname,
		IsActive:  isActive,
		IsAdmin:   isAdmin,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// NewValidator returns a validator with every custom tag and translation registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	translator := core.NewTranslator()
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	schema.InitValidators(validate, translator)
	return validate, translator
}

// XLSX builds a single-sheet workbook from rows; nil cells are left empty.
func XLSX(t *testing.T, rows [][]interface{}) []byte {
	f := excelize.NewFile()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("XLSX() failed: %v", err)
		}
		r := row
		if err := f.SetSheetRow("Sheet1", cell, &r); err != nil {
			t.Fatalf("XLSX() failed: %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("XLSX() failed: %v", err)
	}
	return buf.Bytes()
}

func CSV(t *testing.T, rows [][]string) []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		t.Fatalf("CSV() failed: %v", err)
	}
	return buf.Bytes()
}

// NewLogger returns a logger writing nowhere; Rollbar stays disabled without a token.
func NewLogger() core.Logger {
	return logsvc.NewRollbarLogger(log.New(io.Discard, "TEST : ", log.LstdFlags), core.NewTestConfig())
}

// OpenDB connects to the migrated test database configured by `config/.env.test`.
// Tests needing postgres are skipped unless ENV=TEST.
func OpenDB(t *testing.T) *sql.DB {
	t.Helper()
	conf := core.NewConfig()
	if !conf.TestMode {
		t.Skip("postgres tests run with ENV=TEST")
	}
	if err := database.CreateIfNotExist(conf); err != nil {
		t.Fatalf("OpenDB() failed: %v", err)
	}
	db, err := database.Open(conf)
	if err != nil {
		t.Fatalf("OpenDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := database.Migrate(db); err != nil {
		t.Fatalf("OpenDB() failed: %v", err)
	}
	return db
}
