package render

import (
	"testing"

	"isatab/testutil"
)

func TestRenderingIsPure(t *testing.T) {
	testutil.AssertNoImports(t, ".", testutil.AnyOf(
		"isatab/internal/pipeline",
		"isatab/internal/destination",
		"isatab/internal/exchange",
		"os",
	), "renderers only turn templates and rows into bytes")
}
