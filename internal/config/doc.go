// Package config holds the run configuration of politecrawl: CLI defaults,
// validation, the optional .politecrawl YAML file with per-domain settings,
// and the translation of all of it into crawler options.
package config
