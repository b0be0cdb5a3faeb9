package main

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/sleepimport/internal/config"
)

const exportCSV = `Id,Tz,From,To,Sched,Hours,Rating,Comment,Framerate,Snore,Noise,Cycles,DeepSleep,LenAdjust,Geo
"1700000000000","UTC","14. 11. 2023 22:00","15. 11. 2023 06:00","15. 11. 2023 06:00","8.0","0.0","","10000","-1","-1.0","5","0.2","-30.0","abc"
`

// testConfig returns a config backed by a SQLite file in a temp dir.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Database: config.DatabaseConfig{
			Driver:      "sqlite",
			URL:         filepath.Join(t.TempDir(), "sleep.db"),
			Table:       "sleep_records",
			DropTimeout: 5 * time.Second,
		},
		Upload:   config.UploadConfig{Timeout: time.Minute},
		Analysis: config.AnalysisConfig{Periods: []string{"1", "3", "7"}},
	}
}

// writeArchive zips the export into a temp file and returns its path.
func writeArchive(t *testing.T, body string) string {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("sleep-export.csv")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte(body)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "backup.zip")
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func run(t *testing.T, cfg *config.Config, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := newCLIApp(cfg, &out).Run(append([]string{"sleepctl"}, args...))
	return out.String(), err
}

func TestImportThenReport(t *testing.T) {
	cfg := testConfig(t)
	path := writeArchive(t, exportCSV)

	out, err := run(t, cfg, "import", path)
	if err != nil {
		t.Fatalf("import: %v\n%s", err, out)
	}
	if !strings.Contains(out, "1 records processed, 1 new records added") {
		t.Errorf("unexpected import output:\n%s", out)
	}

	out, err = run(t, cfg, "import", path)
	if err != nil {
		t.Fatalf("second import: %v", err)
	}
	if !strings.Contains(out, "1 records processed, 0 new records added") {
		t.Errorf("re-import should add nothing:\n%s", out)
	}

	reportNow = func() time.Time { return time.Date(2023, 11, 15, 12, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { reportNow = time.Now })

	out, err = run(t, cfg, "report")
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if !strings.HasPrefix(out, "=-=-=-=-=  Sleep Quantity Stats  =-=-=-=-=\n") {
		t.Errorf("report missing title:\n%s", out)
	}
	if !strings.Contains(out, "--=--=--=    24h    =--=--=--\n") {
		t.Errorf("report missing 24h window:\n%s", out)
	}

	out, err = run(t, cfg, "report", "--format", "markdown", "-p", "2")
	if err != nil {
		t.Fatalf("markdown report: %v", err)
	}
	if !strings.Contains(out, "| 2d | 1 |") {
		t.Errorf("markdown report missing 2d row:\n%s", out)
	}
}

func TestImport_FailureExitsNonZero(t *testing.T) {
	cfg := testConfig(t)
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("not an archive"), 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, cfg, "import", path)
	if err == nil {
		t.Fatal("expected an error for a non-archive")
	}
	if !strings.Contains(out, "ARC001") {
		t.Errorf("output should carry the error code:\n%s", out)
	}
}

func TestImport_RequiresPath(t *testing.T) {
	if _, err := run(t, testConfig(t), "import"); err == nil {
		t.Fatal("expected an error without arguments")
	}
}

func TestReport_UnknownFormat(t *testing.T) {
	cfg := testConfig(t)
	if _, err := run(t, cfg, "schema"); err != nil {
		t.Fatalf("schema: %v", err)
	}
	if _, err := run(t, cfg, "report", "--format", "yaml"); err == nil {
		t.Fatal("expected an error for an unknown format")
	}
}

func TestSchemaAndDrop(t *testing.T) {
	cfg := testConfig(t)

	out, err := run(t, cfg, "schema")
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	if !strings.Contains(out, "table created=true") {
		t.Errorf("unexpected schema output: %s", out)
	}

	if _, err := run(t, cfg, "drop"); err == nil {
		t.Fatal("drop without --yes should fail")
	}
	if _, err := os.Stat(cfg.Database.URL); err != nil {
		t.Fatalf("database removed without confirmation: %v", err)
	}

	out, err = run(t, cfg, "drop", "--yes")
	if err != nil {
		t.Fatalf("drop: %v", err)
	}
	if strings.TrimSpace(out) != "database dropped" {
		t.Errorf("unexpected drop output: %q", out)
	}
	if _, err := os.Stat(cfg.Database.URL); !os.IsNotExist(err) {
		t.Errorf("database file still present: %v", err)
	}

	out, err = run(t, cfg, "drop", "--yes", "--recreate")
	if err != nil {
		t.Fatalf("drop --recreate: %v", err)
	}
	if !strings.Contains(out, "database did not exist") || !strings.Contains(out, "empty database created") {
		t.Errorf("unexpected drop output: %q", out)
	}
}
