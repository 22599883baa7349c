// Package dotpilot is a small Go client for the DotPilot REST API.
package dotpilot
