// Package mysql persists agent run records. It ships a file backed
// repository for local development and a MySQL repository that applies the
// embedded schema migrations on startup.
package mysql
