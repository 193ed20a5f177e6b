// Package descriptors bundles the static entity catalog data, one YAML
// document per entity kind. Each document carries the catalog version it was
// authored against, a short description, and the entity rows themselves.
package descriptors

import "embed"

//go:embed *.yaml
var FS embed.FS
