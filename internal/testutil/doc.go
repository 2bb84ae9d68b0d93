// Package testutil provides fixtures shared by the portfolio tests.
//
// This package includes:
// - Self-signed certificate pairs written to temporary directories
// - A complete site tree (templates, projects.json, static assets)
// - A logger that discards output
package testutil
