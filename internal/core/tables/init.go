// Package tables registers the importable tables with the core registry.
// Import it for side effects; each file registers its tables in init().
package tables
