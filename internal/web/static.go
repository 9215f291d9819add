package web

import (
	"embed"
)

// staticFiles holds the embedded booth UI.
// The final binary includes all files under static/.
//
//go:embed static/*
var staticFiles embed.FS
