// Package configs embeds the configuration template written by
// `catalogsearch config init`.
//
// Configuration hierarchy (see internal/config Load):
//  1. defaults (config.NewConfig)
//  2. user config (~/.config/catalogsearch/config.yaml)
//  3. project config (.catalogsearch.yaml)
//  4. --config file
//  5. CATALOGSEARCH_* environment variables
package configs

import _ "embed"

// ConfigTemplate is the commented example configuration.
//
//go:embed catalogsearch.example.yaml
var ConfigTemplate string
