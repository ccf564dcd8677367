package domain

import (
	"testing"

	"appletcore/testutil"
)

// TestDomainDoesNotImportInternal keeps the domain layer free of
// implementation packages so every backend can depend on it.
func TestDomainDoesNotImportInternal(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.InternalImportForbidden, "domain must stay implementation free")
}
