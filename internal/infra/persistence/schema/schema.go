// Package schema embeds the relational DDL for the applet tables and splits it
// into executable statements.
package schema

import (
	"bufio"
	_ "embed"
	"strings"
)

//go:embed sqlite.sql
var sqliteDDL string

//go:embed postgres.sql
var postgresDDL string

// SQLite returns the DDL for the SQLite backend.
func SQLite() string { return sqliteDDL }

// Postgres returns the DDL for the Postgres backend.
func Postgres() string { return postgresDDL }

// SplitStatements breaks a DDL script into individual statements, dropping
// blank lines and `--` comments. A statement ends at a line whose trailing
// character is ';'.
func SplitStatements(script string) []string {
	var (
		statements []string
		current    strings.Builder
	)
	scanner := bufio.NewScanner(strings.NewReader(script))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(line)
		if strings.HasSuffix(line, ";") {
			statements = append(statements, strings.TrimSuffix(current.String(), ";"))
			current.Reset()
		}
	}
	if rest := strings.TrimSpace(current.String()); rest != "" {
		statements = append(statements, rest)
	}
	return statements
}

// Tables lists the tables created by the DDL in dependency order.
func Tables() []string {
	return []string{
		"applets",
		"activities",
		"activity_items",
		"flows",
		"flow_items",
		"applet_histories",
		"activity_histories",
		"activity_item_histories",
		"flow_histories",
		"flow_item_histories",
		"applet_events",
	}
}
