package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type recordingT struct {
	msg string
}

func (r *recordingT) Fatalf(format string, args ...any) { r.msg = fmt.Sprintf(format, args...) }

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestDirectImportViolations(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.go", "package x\n\nimport (\n\t\"fmt\"\n\t\"appletcore/internal/infra/persistence/memory\"\n)\n\nvar _ = fmt.Sprint\nvar _ memory.Store\n")
	writeFile(t, dir, "a_test.go", "package x\n\nimport \"appletcore/internal/core\"\n\nvar _ core.Service\n")
	writeFile(t, dir, "notes.txt", "import \"appletcore/internal/core\"")

	viols, err := directImportViolations(dir, InternalImportForbidden)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(viols) != 1 || !strings.Contains(viols[0], "a.go") {
		t.Fatalf("expected one violation in a.go, got %v", viols)
	}
}

func TestDirectImportViolationsParseError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.go", "package x\nimport (")
	if _, err := directImportViolations(dir, InternalImportForbidden); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := directImportViolations(filepath.Join(dir, "missing"), InternalImportForbidden); err == nil {
		t.Fatal("expected read error")
	}
}

func TestPredicates(t *testing.T) {
	cases := []struct {
		path  string
		pred  func(string) bool
		match bool
	}{
		{"appletcore/internal/core", InternalImportForbidden, true},
		{"appletcore/internalx", InternalImportForbidden, false},
		{"appletcore/pkg/domain", InternalImportForbidden, false},
		{"appletcore/internal/infra/blob/s3", InfraImportForbidden, true},
		{"appletcore/internal/blob", InfraImportForbidden, false},
		{"database/sql", AnyOf(InfraImportForbidden, func(p string) bool { return p == "database/sql" }), true},
		{"fmt", AnyOf(), false},
	}
	for _, tc := range cases {
		if got := tc.pred(tc.path); got != tc.match {
			t.Errorf("%s: got %v, want %v", tc.path, got, tc.match)
		}
	}
}

func TestFailIfViolations(t *testing.T) {
	rec := &recordingT{}
	failIfViolations(rec, "reason", nil)
	if rec.msg != "" {
		t.Fatalf("unexpected failure: %s", rec.msg)
	}
	failIfViolations(rec, "reason", []string{"a", "b"})
	if !strings.Contains(rec.msg, "reason") || !strings.Contains(rec.msg, "a\nb") {
		t.Fatalf("unexpected message: %s", rec.msg)
	}
}
