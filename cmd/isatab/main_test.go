package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sample = "../../internal/manifest/testdata/bii.yaml"

func invoke(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code := run(context.Background(), args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestWriteFiles(t *testing.T) {
	dir := t.TempDir()
	metrics := filepath.Join(t.TempDir(), "isatab.prom")
	code, out, stderr := invoke(t, "write", "--manifest", sample, "--out", dir, "--name", "bii", "--metrics-file", metrics)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, stderr)
	}
	for _, f := range []string{"bii_investigation.txt", "s_BII-S-1.txt", "a_transcriptome.txt"} {
		if _, err := os.Stat(filepath.Join(dir, f)); err != nil {
			t.Fatalf("missing %s: %v", f, err)
		}
		if !strings.Contains(out, f) {
			t.Fatalf("summary does not list %s:\n%s", f, out)
		}
	}
	prom, err := os.ReadFile(metrics)
	if err != nil || !strings.Contains(string(prom), "isatab_operation_duration_seconds") {
		t.Fatalf("metrics file: %v\n%s", err, prom)
	}

	if code, _, stderr := invoke(t, "write", "--manifest", sample, "--out", dir, "--name", "bii"); code == 0 || !strings.Contains(stderr, "already exists") {
		t.Fatalf("rewrite without --overwrite: exit %d, %s", code, stderr)
	}
	if code, _, stderr := invoke(t, "write", "--manifest", sample, "--out", dir, "--name", "bii", "--overwrite"); code != 0 {
		t.Fatalf("overwrite: exit %d, %s", code, stderr)
	}
}

func TestWriteStdout(t *testing.T) {
	code, out, stderr := invoke(t, "write", "--manifest", sample, "--stdout")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, stderr)
	}
	if !strings.HasPrefix(out, "ONTOLOGY SOURCE REFERENCE") || hasLine(out, "Source Name\t") {
		t.Fatalf("unexpected stdout:\n%s", out)
	}

	code, out, _ = invoke(t, "write", "--manifest", sample, "--stdout", "--recursive")
	if code != 0 || !hasLine(out, "Source Name\t") || !strings.Contains(out, "Investigation Identifier\tBII-I-1") {
		t.Fatalf("recursive stdout (exit %d):\n%s", code, out)
	}
	if code, _, _ := invoke(t, "write", "--manifest", sample, "--recursive"); code == 0 {
		t.Fatalf("--recursive without --stdout should fail")
	}
}

// hasLine reports whether some line of out starts with prefix.
func hasLine(out, prefix string) bool {
	return strings.HasPrefix(out, prefix) || strings.Contains(out, "\n"+prefix)
}

func TestWriteToStoreAndLedger(t *testing.T) {
	root := t.TempDir()
	t.Setenv("ISATAB_BLOB_FS_ROOT", root)
	t.Setenv("ISATAB_LEDGER_DRIVER", "sqlite")
	t.Setenv("ISATAB_LEDGER_DSN", filepath.Join(t.TempDir(), "runs.db"))

	code, _, stderr := invoke(t, "write", "--manifest", sample, "--store", "fs", "--out", "exports")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, stderr)
	}
	if _, err := os.Stat(filepath.Join(root, "exports", "BII-I-1_investigation.txt")); err != nil {
		t.Fatalf("investigation object missing: %v", err)
	}

	code, out, stderr := invoke(t, "runs", "--investigation", "BII-I-1")
	if code != 0 {
		t.Fatalf("runs exit %d: %s", code, stderr)
	}
	if !strings.Contains(out, `"completed"`) || !strings.Contains(out, "s_BII-S-1.txt") {
		t.Fatalf("runs output:\n%s", out)
	}
}

func TestTemplates(t *testing.T) {
	code, out, stderr := invoke(t, "templates", "--manifest", sample)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, stderr)
	}
	for _, want := range []string{"file: s_BII-S-1.txt", "- Characteristics[Organism]", "- Raw Data File"} {
		if !strings.Contains(out, want) {
			t.Fatalf("templates output missing %q:\n%s", want, out)
		}
	}
}

func TestUsageErrors(t *testing.T) {
	if code, _, stderr := invoke(t, "write"); code == 0 || !strings.Contains(stderr, "manifest") {
		t.Fatalf("missing --manifest: exit %d %s", code, stderr)
	}
	if code, _, _ := invoke(t, "runs"); code == 0 {
		t.Fatalf("runs without ledger should fail")
	}
	if code, _, _ := invoke(t, "write", "--manifest", "does-not-exist.yaml"); code == 0 {
		t.Fatalf("missing manifest file should fail")
	}
}

func TestMainUsesExitFunc(t *testing.T) {
	prev, prevArgs := exitFunc, os.Args
	defer func() { exitFunc, os.Args = prev, prevArgs }()
	got := -1
	exitFunc = func(code int) { got = code }
	os.Args = []string{"isatab", "--help"}
	stdout := os.Stdout
	devnull, _ := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	os.Stdout = devnull
	main()
	os.Stdout = stdout
	_ = devnull.Close()
	if got != 0 {
		t.Fatalf("exit code = %d", got)
	}
}
