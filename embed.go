package dashboardchat

import "embed"

// TemplateFS contains the embedded HTML templates of the chat widget, split into layouts, pages
// and partial views.
//
//go:embed templates/*
var TemplateFS embed.FS

// StaticFS contains the JavaScript and CSS the widget needs to follow the SSE stream.
//
//go:embed static/*
var StaticFS embed.FS
