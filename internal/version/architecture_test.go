package version

import (
	"testing"

	"appletcore/testutil"
)

func TestNoStorageImports(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.InfraImportForbidden, "version must work on plain values")
}
