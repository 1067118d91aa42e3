// Package dashboard embeds the host page that lays out widget containers.
//
// The page opens the SSE stream, creates one container per widget, shows
// the loading indicator and progress while a job runs, and replaces the
// container content when the view changes. Window resizes are reported to
// the board so completed widgets are redrawn at the new size.
package dashboard

import "embed"

// Assets holds assets/index.html.
//
//go:embed assets/*
var Assets embed.FS
