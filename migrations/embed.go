// Package migrations holds the numbered SQL schema files. They are embedded so
// the server binary can migrate without the source tree.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
