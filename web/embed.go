// Package web embeds the static review UI served by the HTTP server.
package web

import "embed"

// StaticFS holds the single-page upload and review interface.
//
//go:embed static/*
var StaticFS embed.FS
