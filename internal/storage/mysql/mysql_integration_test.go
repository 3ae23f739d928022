//go:build integration || !unit

package mysql_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"

	"comps_dedup/internal/domain"
	mysqlrepo "comps_dedup/internal/storage/mysql"
)

// ---------- small helpers ----------
func pstr(s string) *string     { return &s }
func pint(i int) *int           { return &i }
func pfloat(f float64) *float64 { return &f }

// migrationsDir honours MIGRATIONS_DIR and falls back to the repo copy.
func migrationsDir(t *testing.T) string {
	t.Helper()
	if v := os.Getenv("MIGRATIONS_DIR"); v != "" {
		return v
	}
	return filepath.Join("..", "..", "..", "migrations")
}

func applyMigrations(t *testing.T, db *sql.DB) {
	t.Helper()
	dir := migrationsDir(t)

	st, err := os.Stat(dir)
	if err != nil || !st.IsDir() {
		t.Fatalf("migrations dir %s is not a directory or missing", dir)
	}

	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}
	var files []string
	for _, e := range ents {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".sql" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		t.Fatalf("no .sql files in %s", dir)
	}
	sort.Strings(files)

	for _, f := range files {
		sqlBytes, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		if _, err := db.Exec(string(sqlBytes)); err != nil {
			t.Fatalf("exec %s: %v", f, err)
		}
	}
}

func startMySQL(t *testing.T) *sql.DB {
	t.Helper()
	// Start isolated MySQL; let Docker pick a free host port.
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("dockertest: %v", err)
	}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env: []string{
			"MYSQL_ROOT_PASSWORD=root",
			"MYSQL_DATABASE=comps",
		},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("run mysql: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	dsn := fmt.Sprintf("root:root@tcp(127.0.0.1:%s)/comps?parseTime=true&multiStatements=true&charset=utf8mb4,utf8&loc=UTC",
		resource.GetPort("3306/tcp"))

	var db *sql.DB
	if err := pool.Retry(func() error {
		var e error
		db, e = sql.Open("mysql", dsn)
		if e != nil {
			return e
		}
		return db.Ping()
	}); err != nil {
		t.Fatalf("connect mysql: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	applyMigrations(t, db)
	return db
}

// ---------- the test ----------
func TestRepo_MySQL_PropertiesAndRuns(t *testing.T) {
	repo := mysqlrepo.New(startMySQL(t))
	ctx := context.Background()

	full := domain.PropertyRecord{
		PropertyID:    1,
		SubjectID:     0,
		OrderID:       pstr("4762597"),
		Address:       pstr("12 Oak Street"),
		StructureType: pstr("Detached"),
		ClosePrice:    pfloat(500000),
		GLASqft:       pfloat(1500),
		BedroomsTotal: pfloat(3),
		Latitude:      pfloat(43.7),
		Longitude:     pfloat(-79.4),
		City:          pstr("Toronto"),
		YearBuilt:     pint(1988),
	}
	sparse := domain.PropertyRecord{PropertyID: 2, SubjectID: 0, Address: pstr("12 Oak St")}

	if err := repo.UpsertProperties(ctx, []domain.PropertyRecord{sparse, full}); err != nil {
		t.Fatalf("UpsertProperties: %v", err)
	}
	// second upsert overwrites
	sparse.StructureType = pstr("Detached")
	if err := repo.UpsertProperties(ctx, []domain.PropertyRecord{sparse}); err != nil {
		t.Fatalf("UpsertProperties again: %v", err)
	}

	got, err := repo.LoadProperties(ctx)
	if err != nil {
		t.Fatalf("LoadProperties: %v", err)
	}
	if len(got) != 2 || got[0].PropertyID != 1 || got[1].PropertyID != 2 {
		t.Fatalf("unexpected properties: %+v", got)
	}
	if got[0].YearBuilt == nil || *got[0].YearBuilt != 1988 || got[0].Latitude == nil || *got[0].Latitude != 43.7 {
		t.Fatalf("round trip lost fields: %+v", got[0])
	}
	if got[1].ClosePrice != nil || got[1].StructureType == nil || *got[1].StructureType != "Detached" {
		t.Fatalf("nulls not preserved: %+v", got[1])
	}

	if err := repo.ReplaceCleaned(ctx, "run-1", got[:1]); err != nil {
		t.Fatalf("ReplaceCleaned: %v", err)
	}
	if err := repo.ReplaceCleaned(ctx, "run-2", got[:1]); err != nil {
		t.Fatalf("ReplaceCleaned twice: %v", err)
	}
	cleaned, err := repo.LoadCleaned(ctx)
	if err != nil || len(cleaned) != 1 || cleaned[0].PropertyID != 1 {
		t.Fatalf("LoadCleaned: %+v err=%v", cleaned, err)
	}

	run := domain.RunSummary{
		ID:            "run-2",
		StartedAt:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Duration:      1500 * time.Millisecond,
		InputCount:    2,
		OutputCount:   1,
		DetectedCount: 1,
		Removals:      []domain.Removal{{PropertyID: 2, SubjectID: 0, KeptID: 1, Pass: domain.PassAddress}},
		BelowFloor:    []domain.SubjectCount{{SubjectID: 0, Initial: 2, Final: 1}},
	}
	if err := repo.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	back, err := repo.GetRun(ctx, "run-2")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if back.Duration != run.Duration || !back.StartedAt.Equal(run.StartedAt) || len(back.Removals) != 1 || back.Removals[0] != run.Removals[0] {
		t.Fatalf("unexpected run: %+v", back)
	}
	if len(back.BelowFloor) != 1 || back.BelowFloor[0] != run.BelowFloor[0] {
		t.Fatalf("below floor: %+v", back.BelowFloor)
	}

	if _, err := repo.GetRun(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
