/*
Package config loads the operating parameters shared by the client,
worker and shredder agents (spec §6 "Configuration"): consensus-service
connection details, DFS and local filesystem roots, scheduling cadence,
and shred pass count.

Values are read from an optional YAML file (in the teacher's
gopkg.in/yaml.v3 style, see cmd/warren/apply.go) and may be overridden
by environment variables of the same name, which take precedence so a
deployment can tune a single worker without editing the shared file.
*/
package config
