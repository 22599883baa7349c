package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	xerrors "DotPilot/internal/errors"
	"DotPilot/internal/task"
	"DotPilot/pkg/logger"
)

// AskRequest 是 /api/v1/ask 的请求体。
type AskRequest struct {
	Query string `json:"query"`
}

// ToolInfo 描述一个已注册的工具。
type ToolInfo struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Health 是 /healthz 的响应体。
type Health struct {
	Status string          `json:"status"`
	Ready  bool            `json:"ready"`
	Tools  int             `json:"tools"`
	Runs   *task.TaskStats `json:"runs,omitempty"`
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const maxBodyBytes = 1 << 20

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if s.agent == nil || !s.agent.IsReady() {
		writeError(w, http.StatusServiceUnavailable, string(xerrors.CodeNotInitialized), "Agent 未初始化")
		return
	}
	var req AskRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, string(xerrors.CodeInvalidArgument), "请求体解析失败")
		return
	}
	result, err := s.agent.Run(r.Context(), req.Query)
	if err != nil {
		writeCodedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSubmitRun(w http.ResponseWriter, r *http.Request) {
	if s.tasks == nil {
		writeError(w, http.StatusServiceUnavailable, string(xerrors.CodeInitializationFailure), "异步任务未启用")
		return
	}
	var req task.Request
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, string(task.CodeTaskValidation), "请求体解析失败")
		return
	}
	submitted, err := s.tasks.Submit(r.Context(), req)
	if err != nil {
		writeCodedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, submitted)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.tasks == nil {
		writeError(w, http.StatusServiceUnavailable, string(xerrors.CodeInitializationFailure), "异步任务未启用")
		return
	}
	opts, err := listOptions(r, true)
	if err != nil {
		writeError(w, http.StatusBadRequest, string(xerrors.CodeInvalidArgument), err.Error())
		return
	}
	tasks, err := s.tasks.List(r.Context(), opts...)
	if err != nil {
		writeCodedError(w, r, err)
		return
	}
	if tasks == nil {
		tasks = []*task.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleRunStats(w http.ResponseWriter, r *http.Request) {
	if s.tasks == nil {
		writeError(w, http.StatusServiceUnavailable, string(xerrors.CodeInitializationFailure), "异步任务未启用")
		return
	}
	opts, err := listOptions(r, false)
	if err != nil {
		writeError(w, http.StatusBadRequest, string(xerrors.CodeInvalidArgument), err.Error())
		return
	}
	stats, err := s.tasks.Stats(r.Context(), opts...)
	if err != nil {
		writeCodedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleRunDetail(w http.ResponseWriter, r *http.Request) {
	if s.tasks == nil {
		writeError(w, http.StatusServiceUnavailable, string(xerrors.CodeInitializationFailure), "异步任务未启用")
		return
	}
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, string(xerrors.CodeInvalidArgument), "缺少任务 ID")
		return
	}
	found, err := s.tasks.Get(r.Context(), id)
	if err != nil {
		writeCodedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.agent == nil {
		writeError(w, http.StatusServiceUnavailable, string(xerrors.CodeNotInitialized), "Agent 未初始化")
		return
	}
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	history, err := s.agent.ListHistory(r.Context(), limit)
	if err != nil {
		writeCodedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (s *Server) handleTools(w http.ResponseWriter, _ *http.Request) {
	infos := []ToolInfo{}
	if s.agent != nil {
		registry := s.agent.Registry()
		for _, desc := range registry.Descriptors() {
			params, _ := registry.Parameters(desc.Name)
			infos = append(infos, ToolInfo{Name: desc.Name, Description: desc.Description, Parameters: params})
		}
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := Health{Status: "ok"}
	if s.agent != nil {
		health.Ready = s.agent.IsReady()
		health.Tools = s.agent.Registry().Len()
	}
	if s.tasks != nil {
		if stats, err := s.tasks.Stats(r.Context()); err == nil {
			health.Runs = &stats
		}
	}
	status := http.StatusOK
	if !health.Ready {
		health.Status = "initializing"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

// listOptions 解析 status、since、until、has_result、q，以及分页参数 limit、offset、order。
func listOptions(r *http.Request, paging bool) ([]task.ListOption, error) {
	q := r.URL.Query()
	var opts []task.ListOption

	if raw := q.Get("status"); raw != "" {
		var statuses []task.Status
		for _, part := range strings.Split(raw, ",") {
			status := task.Status(strings.ToLower(strings.TrimSpace(part)))
			if !task.IsValidStatus(status) {
				return nil, errors.New("无效的 status: " + part)
			}
			statuses = append(statuses, status)
		}
		opts = append(opts, task.WithStatuses(statuses...))
	}
	for _, key := range []string{"since", "until"} {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		sec, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || sec < 0 {
			return nil, errors.New("无效的 " + key + ": " + raw)
		}
		if key == "since" {
			opts = append(opts, task.WithUpdatedSince(time.Unix(sec, 0)))
		} else {
			opts = append(opts, task.WithUpdatedUntil(time.Unix(sec, 0)))
		}
	}
	if raw := q.Get("has_result"); raw != "" {
		has, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, errors.New("无效的 has_result: " + raw)
		}
		opts = append(opts, task.WithResultPresence(has))
	}
	if search := strings.TrimSpace(q.Get("q")); search != "" {
		opts = append(opts, task.WithSearch(search))
	}
	if !paging {
		return opts, nil
	}

	for _, key := range []string{"limit", "offset"} {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return nil, errors.New("无效的 " + key + ": " + raw)
		}
		if key == "limit" {
			opts = append(opts, task.WithLimit(n))
		} else {
			opts = append(opts, task.WithOffset(n))
		}
	}
	switch strings.ToLower(q.Get("order")) {
	case "", "desc":
	case "asc":
		opts = append(opts, task.WithSortOrder(task.SortByUpdatedAsc))
	default:
		return nil, errors.New("无效的 order: " + q.Get("order"))
	}
	return opts, nil
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// statusFor 把错误码映射为 HTTP 状态码。
func statusFor(code xerrors.Code) int {
	switch code {
	case xerrors.CodeInvalidArgument, task.CodeTaskValidation, xerrors.CodeToolInvocation:
		return http.StatusBadRequest
	case xerrors.CodeNotFound, task.CodeTaskNotFound, xerrors.CodeToolNotFound:
		return http.StatusNotFound
	case xerrors.CodeConflict, task.CodeTaskConflict:
		return http.StatusConflict
	case xerrors.CodeNotInitialized, xerrors.CodeInitializationFailure:
		return http.StatusServiceUnavailable
	case xerrors.CodeTimeout:
		return http.StatusGatewayTimeout
	case xerrors.CodeExecutorFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeCodedError(w http.ResponseWriter, r *http.Request, err error) {
	code := xerrors.CodeOf(err)
	status := statusFor(code)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context(), logger.Named("api")).Error("request failed",
			"path", r.URL.Path, "code", code, "error", err)
	}
	writeError(w, status, string(code), err.Error())
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
