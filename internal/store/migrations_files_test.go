package store

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

func TestMigrationsCarryUpAndDownSections(t *testing.T) {
	migrationsDir := filepath.Join("..", "..", "db", "migrations")
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}

	pattern := regexp.MustCompile(`^(\d{5})_[a-z_]+\.sql$`)
	seen := map[string]string{}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		match := pattern.FindStringSubmatch(name)
		if match == nil {
			t.Fatalf("unexpected file in migrations dir: %s", name)
		}
		version := match[1]
		if other, ok := seen[version]; ok {
			t.Fatalf("version %s used by both %s and %s", version, other, name)
		}
		seen[version] = name

		contents, err := os.ReadFile(filepath.Join(migrationsDir, name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		body := string(contents)
		up := strings.Index(body, "-- +goose Up")
		down := strings.Index(body, "-- +goose Down")
		if up < 0 || down < 0 {
			t.Fatalf("%s must include both goose Up and Down sections", name)
		}
		if down < up {
			t.Fatalf("%s declares Down before Up", name)
		}
		if strings.Count(body, "-- +goose StatementBegin") != strings.Count(body, "-- +goose StatementEnd") {
			t.Fatalf("%s has unbalanced StatementBegin/StatementEnd markers", name)
		}
	}

	if len(seen) == 0 {
		t.Fatal("no migrations discovered")
	}
}

func TestEveryTenantTableIsScopedByOrganization(t *testing.T) {
	migrationsDir := filepath.Join("..", "..", "db", "migrations")
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}

	createTable := regexp.MustCompile(`(?s)CREATE TABLE (\w+) \((.*?)\n\);`)
	for _, entry := range entries {
		contents, err := os.ReadFile(filepath.Join(migrationsDir, entry.Name()))
		if err != nil {
			t.Fatalf("read %s: %v", entry.Name(), err)
		}
		for _, match := range createTable.FindAllStringSubmatch(string(contents), -1) {
			table, columns := match[1], match[2]
			if table == "organizations" {
				continue
			}
			if !strings.Contains(columns, "organization_id") {
				t.Errorf("table %s has no organization_id column", table)
			}
		}
	}
}
