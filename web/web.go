// Package web embeds the dashboard served on /.
package web

import "embed"

//go:embed static/*
var StaticFiles embed.FS
