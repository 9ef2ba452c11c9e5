// Package configs provides the embedded configuration template for
// synapse. The template is embedded at build time so `synapse config
// init` works in every distribution.
package configs

import _ "embed"

// ConfigTemplate is the annotated starting config written by
// `synapse config init` to synapse.yaml in the working directory.
//
//go:embed synapse.example.yaml
var ConfigTemplate string
