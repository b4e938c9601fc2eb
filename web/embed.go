// Package web embeds the static pages served by the front door: the
// container page and the two iframed sub-applications.
package web

import "embed"

//go:embed index.html chat.html sketchpad.html
var Assets embed.FS
