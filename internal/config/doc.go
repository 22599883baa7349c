// Package config loads the DotPilot daemon configuration from a JSON file and
// fills in defaults relative to the file's directory.
package config
