package sqlinline

import _ "embed"

// Schema creates every table the postgres repository needs. Statements are
// idempotent so it can run on each startup.
//
//go:embed schema.sql
var Schema string
