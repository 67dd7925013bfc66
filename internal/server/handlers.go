package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"quadro/internal/domain"
	"quadro/internal/logging"
	"quadro/internal/services"
)

type handler struct {
	deps Deps
}

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handler) listExecutors(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"executors": h.deps.Manager.ListExecutors()})
}

// taskMovedRequest is the board application's notification that a card
// changed columns
type taskMovedRequest struct {
	ColumnID string `json:"column_id" binding:"required"`
}

func (h *handler) taskMoved(c *gin.Context) {
	taskID := c.Param("id")

	var req taskMovedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.deps.Engine.TaskMoved(c.Request.Context(), taskID, req.ColumnID); err != nil {
		if errors.Is(err, domain.ErrTaskNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		logging.Logger.Error("Failed to process task move", "task_id", taskID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}

type executionResponse struct {
	CompletedAt  *time.Time                 `json:"completed_at,omitempty"`
	ErrorMessage string                     `json:"error_message,omitempty"`
	HookKind     domain.HookKind            `json:"hook_kind"`
	HookName     string                     `json:"hook_name"`
	ID           string                     `json:"id"`
	QueuedAt     time.Time                  `json:"queued_at"`
	SkipReason   domain.SkipReason          `json:"skip_reason,omitempty"`
	StartedAt    *time.Time                 `json:"started_at,omitempty"`
	Status       domain.HookExecutionStatus `json:"status"`
}

func (h *handler) listExecutions(c *gin.Context) {
	taskID := c.Param("id")

	entries, err := h.deps.Ledger.ListByTask(c.Request.Context(), taskID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := make([]executionResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, executionResponse{
			CompletedAt:  entry.CompletedAt,
			ErrorMessage: entry.ErrorMessage,
			HookKind:     entry.HookKindSnapshot,
			HookName:     entry.HookNameSnapshot,
			ID:           entry.ID,
			QueuedAt:     entry.QueuedAt,
			SkipReason:   entry.SkipReason,
			StartedAt:    entry.StartedAt,
			Status:       entry.Status,
		})
	}
	c.JSON(http.StatusOK, gin.H{"executions": out})
}

type messageResponse struct {
	Content   string               `json:"content"`
	CreatedAt time.Time            `json:"created_at"`
	ID        string               `json:"id"`
	Role      domain.MessageRole   `json:"role"`
	Sequence  int64                `json:"sequence"`
	Status    domain.MessageStatus `json:"status"`
}

func (h *handler) listMessages(c *gin.Context) {
	taskID := c.Param("id")

	messages, err := h.deps.Messages.ListByTask(c.Request.Context(), taskID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := make([]messageResponse, 0, len(messages))
	for _, message := range messages {
		out = append(out, messageResponse{
			Content:   message.Content,
			CreatedAt: message.CreatedAt,
			ID:        message.ID,
			Role:      message.Role,
			Sequence:  message.Sequence,
			Status:    message.Status,
		})
	}
	c.JSON(http.StatusOK, gin.H{"messages": out})
}

// upsertColumnRequest mirrors the engine-relevant column fields the board
// application syncs over
type upsertColumnRequest struct {
	BoardID            string `json:"board_id" binding:"required"`
	HooksEnabled       *bool  `json:"hooks_enabled"`
	MaxConcurrentTasks *int   `json:"max_concurrent_tasks"`
	Name               string `json:"name"`
}

func (h *handler) upsertColumn(c *gin.Context) {
	var req upsertColumnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hooksEnabled := true
	if req.HooksEnabled != nil {
		hooksEnabled = *req.HooksEnabled
	}
	column := domain.Column{
		BoardID: req.BoardID,
		ID:      c.Param("id"),
		Name:    req.Name,
		Settings: domain.ColumnSettings{
			HooksEnabled:       hooksEnabled,
			MaxConcurrentTasks: req.MaxConcurrentTasks,
		},
	}
	if err := h.deps.Tasks.UpsertColumn(c.Request.Context(), column); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// A raised or removed concurrency limit can free slots immediately
	go h.deps.Engine.Pump(context.Background(), column.ID)

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// --- hook catalog ---

type hookResponse struct {
	AgentExecutor string          `json:"agent_executor,omitempty"`
	AgentPrompt   string          `json:"agent_prompt,omitempty"`
	AutoApprove   bool            `json:"auto_approve"`
	Command       string          `json:"command,omitempty"`
	ID            string          `json:"id"`
	Kind          domain.HookKind `json:"kind"`
	Name          string          `json:"name"`
	System        bool            `json:"system"`
}

func hookToResponse(hook domain.Hook) hookResponse {
	return hookResponse{
		AgentExecutor: hook.AgentExecutor,
		AgentPrompt:   hook.AgentPrompt,
		AutoApprove:   hook.AutoApprove,
		Command:       hook.Command,
		ID:            hook.ID,
		Kind:          hook.Kind,
		Name:          hook.Name,
		System:        hook.System,
	}
}

func (h *handler) listHooks(c *gin.Context) {
	hooks, err := h.deps.Hooks.ListHooks(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := make([]hookResponse, 0, len(hooks))
	for _, hook := range hooks {
		out = append(out, hookToResponse(hook))
	}
	c.JSON(http.StatusOK, gin.H{"hooks": out})
}

type createHookRequest struct {
	AgentExecutor string `json:"agent_executor"`
	AgentPrompt   string `json:"agent_prompt"`
	AutoApprove   bool   `json:"auto_approve"`
	BoardID       string `json:"board_id" binding:"required"`
	Command       string `json:"command"`
	Kind          string `json:"kind" binding:"required"`
	Name          string `json:"name" binding:"required"`
}

func (h *handler) createHook(c *gin.Context) {
	var req createHookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	kind := domain.HookKind(req.Kind)
	switch kind {
	case domain.HookKindScript:
		if req.Command == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "script hooks require a command"})
			return
		}
	case domain.HookKindAgent:
		if req.AgentPrompt == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "agent hooks require a prompt"})
			return
		}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be script or agent"})
		return
	}

	hook := domain.Hook{
		AgentExecutor: req.AgentExecutor,
		AgentPrompt:   req.AgentPrompt,
		AutoApprove:   req.AutoApprove,
		BoardID:       req.BoardID,
		Command:       req.Command,
		CreatedAt:     time.Now().UTC(),
		ID:            uuid.NewString(),
		Kind:          kind,
		Name:          req.Name,
	}
	if err := h.deps.Hooks.CreateHook(c.Request.Context(), hook); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, hookToResponse(hook))
}

type updateHookRequest struct {
	AgentExecutor string `json:"agent_executor"`
	AgentPrompt   string `json:"agent_prompt"`
	AutoApprove   bool   `json:"auto_approve"`
	Command       string `json:"command"`
	Name          string `json:"name" binding:"required"`
}

func (h *handler) updateHook(c *gin.Context) {
	id := c.Param("id")

	var req updateHookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	existing, err := h.deps.Hooks.GetHook(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if existing.System {
		c.JSON(http.StatusForbidden, gin.H{"error": "system hooks are immutable"})
		return
	}

	existing.AgentExecutor = req.AgentExecutor
	existing.AgentPrompt = req.AgentPrompt
	existing.AutoApprove = req.AutoApprove
	existing.Command = req.Command
	existing.Name = req.Name
	if err := h.deps.Hooks.UpdateHook(c.Request.Context(), *existing); err != nil {
		if errors.Is(err, domain.ErrHookNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, hookToResponse(*existing))
}

func (h *handler) deleteHook(c *gin.Context) {
	id := c.Param("id")

	existing, err := h.deps.Hooks.GetHook(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if existing.System {
		c.JSON(http.StatusForbidden, gin.H{"error": "system hooks are immutable"})
		return
	}

	if err := h.deps.Hooks.DeleteHook(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// --- column hook bindings ---

type bindingResponse struct {
	ColumnID    string              `json:"column_id"`
	ExecuteOnce bool                `json:"execute_once"`
	HookID      string              `json:"hook_id"`
	ID          string              `json:"id"`
	Position    int                 `json:"position"`
	Removable   bool                `json:"removable"`
	Settings    domain.HookSettings `json:"settings"`
	Transparent bool                `json:"transparent"`
}

func bindingToResponse(binding domain.ColumnHookBinding) bindingResponse {
	return bindingResponse{
		ColumnID:    binding.ColumnID,
		ExecuteOnce: binding.ExecuteOnce,
		HookID:      binding.HookID,
		ID:          binding.ID,
		Position:    binding.Position,
		Removable:   binding.Removable,
		Settings:    binding.Settings,
		Transparent: binding.Transparent,
	}
}

func (h *handler) listBindings(c *gin.Context) {
	bindings, err := h.deps.Hooks.ListBindings(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := make([]bindingResponse, 0, len(bindings))
	for _, binding := range bindings {
		out = append(out, bindingToResponse(binding))
	}
	c.JSON(http.StatusOK, gin.H{"column_hooks": out})
}

type createBindingRequest struct {
	ColumnID    string              `json:"column_id" binding:"required"`
	ExecuteOnce bool                `json:"execute_once"`
	HookID      string              `json:"hook_id" binding:"required"`
	Position    int                 `json:"position"`
	Settings    domain.HookSettings `json:"settings"`
	Transparent bool                `json:"transparent"`
}

func (h *handler) createBinding(c *gin.Context) {
	var req createBindingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := h.deps.Hooks.GetHook(c.Request.Context(), req.HookID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	binding := domain.ColumnHookBinding{
		ColumnID:    req.ColumnID,
		ExecuteOnce: req.ExecuteOnce,
		HookID:      req.HookID,
		ID:          uuid.NewString(),
		Position:    req.Position,
		Removable:   true,
		Settings:    req.Settings,
		Transparent: req.Transparent,
	}
	if err := h.deps.Hooks.CreateBinding(c.Request.Context(), binding); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, bindingToResponse(binding))
}

type updateBindingRequest struct {
	ExecuteOnce bool                `json:"execute_once"`
	Position    int                 `json:"position"`
	Settings    domain.HookSettings `json:"settings"`
	Transparent bool                `json:"transparent"`
}

func (h *handler) updateBinding(c *gin.Context) {
	id := c.Param("id")

	var req updateBindingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	existing, err := h.deps.Hooks.GetBinding(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	existing.ExecuteOnce = req.ExecuteOnce
	existing.Position = req.Position
	existing.Settings = req.Settings
	existing.Transparent = req.Transparent
	if err := h.deps.Hooks.UpdateBinding(c.Request.Context(), *existing); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, bindingToResponse(*existing))
}

func (h *handler) deleteBinding(c *gin.Context) {
	if err := h.deps.Hooks.DeleteBinding(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// --- periodical tasks ---

type periodicalResponse struct {
	AutoStart       bool       `json:"auto_start"`
	BoardID         string     `json:"board_id"`
	Description     string     `json:"description,omitempty"`
	Enabled         bool       `json:"enabled"`
	ExecutionCount  int        `json:"execution_count"`
	Executor        string     `json:"executor,omitempty"`
	ID              string     `json:"id"`
	LastExecutedAt  *time.Time `json:"last_executed_at,omitempty"`
	NextExecutionAt time.Time  `json:"next_execution_at"`
	Schedule        string     `json:"schedule"`
	Title           string     `json:"title"`
}

func periodicalToResponse(task domain.PeriodicalTask) periodicalResponse {
	return periodicalResponse{
		AutoStart:       task.AutoStart,
		BoardID:         task.BoardID,
		Description:     task.Description,
		Enabled:         task.Enabled,
		ExecutionCount:  task.ExecutionCount,
		Executor:        task.Executor,
		ID:              task.ID,
		LastExecutedAt:  task.LastExecutedAt,
		NextExecutionAt: task.NextExecutionAt,
		Schedule:        task.Schedule,
		Title:           task.Title,
	}
}

func (h *handler) listPeriodicals(c *gin.Context) {
	tasks, err := h.deps.Periodicals.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := make([]periodicalResponse, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, periodicalToResponse(task))
	}
	c.JSON(http.StatusOK, gin.H{"periodicals": out})
}

type createPeriodicalRequest struct {
	AutoStart   bool   `json:"auto_start"`
	BoardID     string `json:"board_id" binding:"required"`
	Description string `json:"description"`
	Enabled     *bool  `json:"enabled"`
	Executor    string `json:"executor"`
	Schedule    string `json:"schedule" binding:"required"`
	Title       string `json:"title" binding:"required"`
}

func (h *handler) createPeriodical(c *gin.Context) {
	var req createPeriodicalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := domain.ValidateCronExpression(req.Schedule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	next, err := services.NextCronExecution(req.Schedule, time.Now().UTC())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	task := domain.PeriodicalTask{
		AutoStart:       req.AutoStart,
		BoardID:         req.BoardID,
		CreatedAt:       time.Now().UTC(),
		Description:     req.Description,
		Enabled:         enabled,
		Executor:        req.Executor,
		ID:              uuid.NewString(),
		NextExecutionAt: next,
		Schedule:        req.Schedule,
		Title:           req.Title,
	}
	if err := h.deps.Periodicals.Create(c.Request.Context(), task); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, periodicalToResponse(task))
}

type setEnabledRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

func (h *handler) setPeriodicalEnabled(c *gin.Context) {
	id := c.Param("id")

	var req setEnabledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := h.deps.Periodicals.Get(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	// Enabling recomputes the next firing from now so a long-disabled
	// template does not fire immediately for every missed slot
	next := task.NextExecutionAt
	if *req.Enabled {
		next, err = services.NextCronExecution(task.Schedule, time.Now().UTC())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}
	if err := h.deps.Periodicals.SetEnabled(c.Request.Context(), id, *req.Enabled, next); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	task, err = h.deps.Periodicals.Get(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, periodicalToResponse(*task))
}

func (h *handler) deletePeriodical(c *gin.Context) {
	if err := h.deps.Periodicals.Delete(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}
