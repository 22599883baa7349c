package errors

import (
	stdErrors "errors"
	"fmt"
	"maps"
	"sync"
)

// Code 是跨包传递的错误码。
type Code string

// Severity 决定告警级别与日志级别。
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

const (
	CodeUnknown               Code = "UNKNOWN"
	CodeInvalidArgument       Code = "INVALID_ARGUMENT"
	CodeNotFound              Code = "NOT_FOUND"
	CodeConflict              Code = "CONFLICT"
	CodeAlreadyCompleted      Code = "ALREADY_COMPLETED"
	CodeRetriesExhausted      Code = "RETRIES_EXHAUSTED"
	CodeInitializationFailure Code = "INITIALIZATION_FAILURE"
	CodeStorageFailure        Code = "STORAGE_FAILURE"
	CodeQueueFailure          Code = "QUEUE_FAILURE"
	CodeExecutorFailure       Code = "EXECUTOR_FAILURE"
	CodeTimeout               Code = "TIMEOUT"

	// CodeConfiguration 表示模型或运行参数缺失、非法。
	CodeConfiguration Code = "CONFIGURATION_ERROR"
	// CodeNotInitialized 表示在 Init 之前调用了 Run。
	CodeNotInitialized Code = "NOT_INITIALIZED"
	// CodeToolInvocation 表示工具参数非法或工具执行失败。
	CodeToolInvocation Code = "TOOL_INVOCATION_FAILED"
	// CodeToolNotFound 表示模型请求了未注册的工具。
	CodeToolNotFound Code = "TOOL_NOT_FOUND"
)

// Attributes 是错误码的默认行为。
type Attributes struct {
	Message   string
	Severity  Severity
	Retryable bool
	Alert     bool
}

var (
	registryMu sync.RWMutex
	registry   = map[Code]Attributes{
		CodeUnknown:               {"unknown error", SeverityCritical, false, true},
		CodeInvalidArgument:       {"invalid argument", SeverityInfo, false, false},
		CodeNotFound:              {"resource not found", SeverityInfo, false, false},
		CodeConflict:              {"resource conflict", SeverityWarning, false, false},
		CodeAlreadyCompleted:      {"resource already completed", SeverityInfo, false, false},
		CodeRetriesExhausted:      {"retries exhausted", SeverityWarning, false, true},
		CodeInitializationFailure: {"service not initialized", SeverityWarning, true, true},
		CodeStorageFailure:        {"storage failure", SeverityCritical, true, true},
		CodeQueueFailure:          {"queue failure", SeverityCritical, true, true},
		CodeExecutorFailure:       {"executor failure", SeverityWarning, true, true},
		CodeTimeout:               {"operation timed out", SeverityWarning, true, true},
		CodeConfiguration:         {"invalid configuration", SeverityCritical, false, true},
		CodeNotInitialized:        {"orchestrator not initialized", SeverityWarning, false, false},
		CodeToolInvocation:        {"tool invocation failed", SeverityInfo, false, false},
		CodeToolNotFound:          {"tool not found", SeverityInfo, false, false},
	}
)

// Register 在 init 阶段登记业务错误码，重复登记以后者为准。
func Register(code Code, attr Attributes) {
	registryMu.Lock()
	registry[code] = attr
	registryMu.Unlock()
}

// AttributesOf 查询错误码属性，未登记的错误码按 UNKNOWN 处理。
func AttributesOf(code Code) Attributes {
	registryMu.RLock()
	defer registryMu.RUnlock()
	if attr, ok := registry[code]; ok {
		return attr
	}
	return registry[CodeUnknown]
}

// Error 携带错误码、上下文元数据以及可覆盖的告警属性。
type Error struct {
	code     Code
	message  string
	cause    error
	metadata map[string]string

	retryable *bool
	alert     *bool
	severity  *Severity
}

// Option 调整单个错误实例的属性。
type Option func(*Error)

func WithMetadata(key, value string) Option {
	return func(e *Error) {
		if e.metadata == nil {
			e.metadata = map[string]string{}
		}
		e.metadata[key] = value
	}
}

func WithRetryable(retryable bool) Option {
	return func(e *Error) { e.retryable = &retryable }
}

func WithAlert(alert bool) Option {
	return func(e *Error) { e.alert = &alert }
}

func WithSeverity(sev Severity) Option {
	return func(e *Error) { e.severity = &sev }
}

// New 构造错误；message 为空时使用错误码的默认描述。
func New(code Code, message string, opts ...Option) *Error {
	if message == "" {
		message = AttributesOf(code).Message
	}
	e := &Error{code: code, message: message}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Wrap 与 New 相同，但保留底层原因以便 errors.Is/As 继续向下匹配。
func Wrap(code Code, cause error, message string, opts ...Option) *Error {
	e := New(code, message, opts...)
	e.cause = cause
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause == nil {
		return fmt.Sprintf("[%s] %s", e.code, e.message)
	}
	return fmt.Sprintf("[%s] %s: %v", e.code, e.message, e.cause)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is 按错误码比较，使 errors.Is(err, errors.New(code, "")) 成立。
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if e == nil || !ok || t == nil {
		return false
	}
	return e.code == t.code
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeUnknown
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

// Metadata 返回元数据副本。
func (e *Error) Metadata() map[string]string {
	if e == nil || len(e.metadata) == 0 {
		return nil
	}
	return maps.Clone(e.metadata)
}

func (e *Error) Retryable() bool {
	switch {
	case e == nil:
		return false
	case e.retryable != nil:
		return *e.retryable
	default:
		return AttributesOf(e.code).Retryable
	}
}

func (e *Error) ShouldAlert() bool {
	switch {
	case e == nil:
		return false
	case e.alert != nil:
		return *e.alert
	default:
		return AttributesOf(e.code).Alert
	}
}

func (e *Error) Severity() Severity {
	switch {
	case e == nil:
		return SeverityInfo
	case e.severity != nil:
		return *e.severity
	default:
		return AttributesOf(e.code).Severity
	}
}

// From 在错误链中查找 *Error。
func From(err error) (*Error, bool) {
	var target *Error
	if err == nil || !stdErrors.As(err, &target) {
		return nil, false
	}
	return target, true
}

// CodeOf 返回错误链中第一个 *Error 的错误码。
func CodeOf(err error) Code {
	if e, ok := From(err); ok {
		return e.Code()
	}
	return CodeUnknown
}

// IsCode 判断错误链中是否存在指定错误码。
func IsCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

func RetryableError(err error) bool {
	e, ok := From(err)
	return ok && e.Retryable()
}

func ShouldAlert(err error) bool {
	e, ok := From(err)
	return ok && e.ShouldAlert()
}

func SeverityOf(err error) Severity {
	if e, ok := From(err); ok {
		return e.Severity()
	}
	return AttributesOf(CodeUnknown).Severity
}
