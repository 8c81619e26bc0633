package web

import "embed"

// StaticFS holds the dashboard files served by `loam serve`.
//
//go:embed all:static
var StaticFS embed.FS
