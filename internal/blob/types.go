// Package blob re-exports core blob abstractions and opens the configured
// backend. Packages outside internal/blob depend on this package rather than
// on the infra implementations.
package blob

import (
	"appletcore/internal/blob/core"
)

type (
	// Driver identifies a blob backend driver.
	Driver = core.Driver
	// PutOptions configures a blob write.
	PutOptions = core.PutOptions
	// Info describes stored blob metadata.
	Info = core.Info
	// Store is the interface for blob storage backends.
	Store = core.Store
)

const (
	// DriverFilesystem is the local filesystem driver.
	DriverFilesystem = core.DriverFilesystem
	// DriverS3 is the S3-compatible driver.
	DriverS3 = core.DriverS3
	// DriverMemory is the in-memory test driver.
	DriverMemory = core.DriverMemory
	// DriverNone disables the archive.
	DriverNone = core.DriverNone
)

var (
	// ErrExists is returned by Put for a taken key.
	ErrExists = core.ErrExists
	// ErrNotFound is returned for absent keys.
	ErrNotFound = core.ErrNotFound
)
