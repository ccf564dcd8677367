package validation

import (
	"testing"

	"appletcore/testutil"
)

func TestNoStorageImports(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.InfraImportForbidden, "validation must work on plain values")
}
