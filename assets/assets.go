// Package assets embeds the files shipped inside the binaries.
package assets

import "embed"

// FS holds the email and web templates, the SQL migrations, the report fonts and the common passwords list.
//
//go:embed all:templates migrations fonts common-passwords.txt
var FS embed.FS
