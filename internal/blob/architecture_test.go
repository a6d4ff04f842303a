package blob

import (
	"sort"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

// TestOnlyWrappersImportInfra keeps backends behind their wrapper packages:
// internal/infra/blob is only imported from internal/blob and
// internal/infra/ledger only from internal/ledger.
func TestOnlyWrappersImportInfra(t *testing.T) {
	rules := map[string]string{
		"isatab/internal/infra/blob":   "isatab/internal/blob",
		"isatab/internal/infra/ledger": "isatab/internal/ledger",
	}
	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports, Tests: true}
	pkgs, err := packages.Load(cfg, "isatab/...")
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}
	var violations []string
	for _, pkg := range pkgs {
		for infra, wrapper := range rules {
			if within(pkg.PkgPath, wrapper) || within(pkg.PkgPath, infra) {
				continue
			}
			for imp := range pkg.Imports {
				if within(imp, infra) {
					violations = append(violations, pkg.PkgPath+": "+imp)
				}
			}
		}
	}
	sort.Strings(violations)
	for _, v := range violations {
		t.Errorf("forbidden infra import: %s", v)
	}
}

func within(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
