package migrations

import "embed"

// Files 包含按版本号排序执行的运行记录表迁移。
//
//go:embed *.sql
var Files embed.FS
