package mysql

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// RunRecord 是一次智能体运行的落库结构，ToolResults 保存 JSON 编码的调用轨迹。
type RunRecord struct {
	ID              string `json:"id"`
	Query           string `json:"query"`
	Output          string `json:"output"`
	Provider        string `json:"provider"`
	Model           string `json:"model"`
	Chain           string `json:"chain,omitempty"`
	Iterations      int    `json:"iterations"`
	ToolCalls       int    `json:"tool_calls"`
	FailedToolCalls int    `json:"failed_tool_calls"`
	Completed       bool   `json:"completed"`
	ToolResults     string `json:"tool_results"`
	CreatedAt       int64  `json:"created_at"`
	UpdatedAt       int64  `json:"updated_at"`
}

// RunRepository 抽象运行记录的持久化接口。
type RunRepository interface {
	Save(ctx context.Context, record *RunRecord) error
	ListLatest(ctx context.Context, limit int) ([]RunRecord, error)
}

// ErrUnsupportedDriver 表示配置了未知的存储驱动。
var ErrUnsupportedDriver = errors.New("暂不支持的存储驱动")

const memoryRetention = 512

// MemoryRunRepository 把记录追加到本地 JSONL 文件，并在内存中保留最近的记录。
type MemoryRunRepository struct {
	mu       sync.RWMutex
	dataFile string
	records  []RunRecord
}

// NewMemoryRunRepository 创建文件仓库并加载已有记录。
func NewMemoryRunRepository(dataDir string) (*MemoryRunRepository, error) {
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("创建数据目录失败: %w", err)
	}
	repo := &MemoryRunRepository{dataFile: filepath.Join(dataDir, "runs.log")}
	if err := repo.loadFromDisk(); err != nil {
		return nil, err
	}
	return repo, nil
}

// Save 以追加写的方式记录运行结果。
func (m *MemoryRunRepository) Save(_ context.Context, record *RunRecord) error {
	if record == nil {
		return fmt.Errorf("运行记录不能为空")
	}
	encoded, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("序列化运行记录失败: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	file, err := os.OpenFile(m.dataFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("打开运行日志失败: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(append(encoded, '\n')); err != nil {
		return fmt.Errorf("写入运行日志失败: %w", err)
	}

	m.records = append([]RunRecord{*record}, m.records...)
	if len(m.records) > memoryRetention {
		m.records = m.records[:memoryRetention]
	}
	return nil
}

// ListLatest 返回最近的运行记录，按写入时间倒序排列。
func (m *MemoryRunRepository) ListLatest(_ context.Context, limit int) ([]RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 || limit > len(m.records) {
		limit = len(m.records)
	}
	results := make([]RunRecord, limit)
	copy(results, m.records[:limit])
	return results, nil
}

func (m *MemoryRunRepository) loadFromDisk() error {
	file, err := os.OpenFile(m.dataFile, os.O_RDONLY|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("读取运行日志失败: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	var restored []RunRecord
	for scanner.Scan() {
		var record RunRecord
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			continue
		}
		restored = append([]RunRecord{record}, restored...)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("解析运行日志失败: %w", err)
	}
	if len(restored) > memoryRetention {
		restored = restored[:memoryRetention]
	}
	m.records = restored
	return nil
}

// SQLRunRepository 使用 MySQL 存储运行记录。
type SQLRunRepository struct {
	db *sql.DB
}

// NewSQLRunRepository 建立连接池并执行尚未应用的迁移。
func NewSQLRunRepository(ctx context.Context, cfg Config) (*SQLRunRepository, error) {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	repo := &SQLRunRepository{db: db}
	if err := repo.runMigrations(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

const insertRunSQL = `INSERT INTO agent_runs
    (id, query, output, provider, model, chain, iterations, tool_calls, failed_tool_calls, completed, tool_results, created_at, updated_at)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const listRunsSQL = `SELECT id, query, output, provider, model, chain, iterations, tool_calls, failed_tool_calls, completed, tool_results, created_at, updated_at
    FROM agent_runs ORDER BY created_at DESC, id DESC LIMIT ?`

// Save 将运行记录写入 MySQL。
func (s *SQLRunRepository) Save(ctx context.Context, record *RunRecord) error {
	if record == nil {
		return fmt.Errorf("运行记录不能为空")
	}
	if _, err := s.db.ExecContext(ctx, insertRunSQL,
		record.ID,
		record.Query,
		record.Output,
		record.Provider,
		record.Model,
		record.Chain,
		record.Iterations,
		record.ToolCalls,
		record.FailedToolCalls,
		record.Completed,
		record.ToolResults,
		record.CreatedAt,
		record.UpdatedAt,
	); err != nil {
		return fmt.Errorf("写入运行记录失败: %w", err)
	}
	return nil
}

// ListLatest 查询最近的若干条运行记录，limit 非正时默认 20 条。
func (s *SQLRunRepository) ListLatest(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, listRunsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("查询运行记录失败: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(&r.ID, &r.Query, &r.Output, &r.Provider, &r.Model, &r.Chain,
			&r.Iterations, &r.ToolCalls, &r.FailedToolCalls, &r.Completed, &r.ToolResults,
			&r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("解析运行记录失败: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历运行记录失败: %w", err)
	}
	return records, nil
}

// Close 关闭底层数据库连接。
func (s *SQLRunRepository) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
