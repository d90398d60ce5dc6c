// Package db carries the embedded database schema.
package db

import _ "embed"

// Schema is the full storefront schema, applied on startup.
//
//go:embed migrations/001_schema.sql
var Schema string
