// Package appfs embeds the files shipped inside the binaries.
package appfs

import "embed"

//go:embed migrations all:templates
var FS embed.FS
