package blob

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"appletcore/internal/config"
)

func TestOpenDrivers(t *testing.T) {
	ctx := context.Background()
	if s, err := Open(ctx, config.Blob{Driver: "none"}); err != nil || s != nil {
		t.Fatalf("none driver: %v %v", s, err)
	}
	s, err := Open(ctx, config.Blob{Driver: "memory"})
	if err != nil || s.Driver() != DriverMemory {
		t.Fatalf("memory driver: %v", err)
	}
	root := t.TempDir()
	s, err = Open(ctx, config.Blob{Driver: "fs", FSRoot: root})
	if err != nil || s.Driver() != DriverFilesystem {
		t.Fatalf("fs driver: %v", err)
	}
	if _, err := s.Put(ctx, "a/b.json", bytes.NewReader([]byte("{}")), PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := s.Put(ctx, "a/b.json", bytes.NewReader([]byte("{}")), PutOptions{}); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	s, err = Open(ctx, config.Blob{Driver: "s3", S3: config.S3{Bucket: "bkt", Region: "us-east-1", AccessKeyID: "AKIA", SecretAccessKey: "SECRET"}})
	if err != nil || s.Driver() != DriverS3 {
		t.Fatalf("s3 driver: %v", err)
	}
	if _, err := Open(ctx, config.Blob{Driver: "tape"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}
