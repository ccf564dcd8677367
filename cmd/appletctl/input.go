package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"appletcore/pkg/domain"
)

// readRequest decodes an applet request from YAML or JSON. JSON is a subset
// of YAML, so both go through the YAML decoder and are re-encoded as JSON to
// reuse the request's JSON decoding of item variants.
func readRequest(path string, stdin io.Reader) (domain.AppletRequest, error) {
	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(path) //nolint:gosec // operator supplied path
	}
	if err != nil {
		return domain.AppletRequest{}, fmt.Errorf("read request: %w", err)
	}
	var doc any
	if err := yaml.NewDecoder(bytes.NewReader(raw)).Decode(&doc); err != nil {
		return domain.AppletRequest{}, fmt.Errorf("parse request: %w", err)
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return domain.AppletRequest{}, fmt.Errorf("parse request: %w", err)
	}
	var req domain.AppletRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return domain.AppletRequest{}, fmt.Errorf("decode request: %w", err)
	}
	return req, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
