package changes

import (
	"testing"

	"appletcore/testutil"
)

func TestNoStorageImports(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.InfraImportForbidden, "changes must work on plain values")
}
