package storage

import (
	"quadro/internal/domain"
)

func hookModelToDomain(m HookModel) domain.Hook {
	return domain.Hook{
		AgentExecutor: m.AgentExecutor,
		AgentPrompt:   m.AgentPrompt,
		AutoApprove:   m.AutoApprove,
		BoardID:       m.BoardID,
		Command:       m.Command,
		CreatedAt:     m.CreatedAt,
		ID:            m.ID,
		Kind:          domain.HookKind(m.Kind),
		Name:          m.Name,
		System:        m.System,
	}
}

func domainToHookModel(h domain.Hook) HookModel {
	return HookModel{
		AgentExecutor: h.AgentExecutor,
		AgentPrompt:   h.AgentPrompt,
		AutoApprove:   h.AutoApprove,
		BoardID:       h.BoardID,
		Command:       h.Command,
		CreatedAt:     h.CreatedAt,
		ID:            h.ID,
		Kind:          string(h.Kind),
		Name:          h.Name,
		System:        h.System,
	}
}

func bindingModelToDomain(m ColumnHookModel) domain.ColumnHookBinding {
	return domain.ColumnHookBinding{
		ColumnID:    m.ColumnID,
		ExecuteOnce: m.ExecuteOnce,
		HookID:      m.HookID,
		ID:          m.ID,
		Position:    m.Position,
		Removable:   m.Removable,
		Settings: domain.HookSettings{
			Sound:        m.Sound,
			TargetColumn: m.TargetColumn,
		},
		Transparent: m.Transparent,
	}
}

func domainToBindingModel(b domain.ColumnHookBinding) ColumnHookModel {
	return ColumnHookModel{
		ColumnID:     b.ColumnID,
		ExecuteOnce:  b.ExecuteOnce,
		HookID:       b.HookID,
		ID:           b.ID,
		Position:     b.Position,
		Removable:    b.Removable,
		Sound:        b.Settings.Sound,
		TargetColumn: b.Settings.TargetColumn,
		Transparent:  b.Transparent,
	}
}

func executionModelToDomain(m HookExecutionModel) domain.HookExecution {
	return domain.HookExecution{
		ChainPosition:    m.ChainPosition,
		ColumnHookID:     m.ColumnHookID,
		CommandSnapshot:  m.CommandSnapshot,
		CompletedAt:      m.CompletedAt,
		ErrorMessage:     m.ErrorMessage,
		HookKindSnapshot: domain.HookKind(m.HookKindSnapshot),
		HookNameSnapshot: m.HookNameSnapshot,
		ID:               m.ID,
		PromptSnapshot:   m.PromptSnapshot,
		QueuedAt:         m.QueuedAt,
		SkipReason:       domain.SkipReason(m.SkipReason),
		StartedAt:        m.StartedAt,
		Status:           domain.HookExecutionStatus(m.Status),
		TaskID:           m.TaskID,
		Transparent:      m.Transparent,
	}
}

func domainToExecutionModel(e domain.HookExecution) HookExecutionModel {
	return HookExecutionModel{
		ChainPosition:    e.ChainPosition,
		ColumnHookID:     e.ColumnHookID,
		CommandSnapshot:  e.CommandSnapshot,
		CompletedAt:      e.CompletedAt,
		ErrorMessage:     e.ErrorMessage,
		HookKindSnapshot: string(e.HookKindSnapshot),
		HookNameSnapshot: e.HookNameSnapshot,
		ID:               e.ID,
		PromptSnapshot:   e.PromptSnapshot,
		QueuedAt:         e.QueuedAt,
		SkipReason:       string(e.SkipReason),
		StartedAt:        e.StartedAt,
		Status:           string(e.Status),
		TaskID:           e.TaskID,
		Transparent:      e.Transparent,
	}
}

func sessionModelToDomain(m ExecutorSessionModel) domain.ExecutorSession {
	return domain.ExecutorSession{
		CompletedAt:      m.CompletedAt,
		ErrorMessage:     m.ErrorMessage,
		ExecutorType:     m.ExecutorType,
		ExitCode:         m.ExitCode,
		ID:               m.ID,
		Prompt:           m.Prompt,
		StartedAt:        m.StartedAt,
		Status:           domain.SessionStatus(m.Status),
		StopReason:       m.StopReason,
		TaskID:           m.TaskID,
		WorkingDirectory: m.WorkingDirectory,
	}
}

func domainToSessionModel(s domain.ExecutorSession) ExecutorSessionModel {
	return ExecutorSessionModel{
		CompletedAt:      s.CompletedAt,
		ErrorMessage:     s.ErrorMessage,
		ExecutorType:     s.ExecutorType,
		ExitCode:         s.ExitCode,
		ID:               s.ID,
		Prompt:           s.Prompt,
		StartedAt:        s.StartedAt,
		Status:           string(s.Status),
		StopReason:       s.StopReason,
		TaskID:           s.TaskID,
		WorkingDirectory: s.WorkingDirectory,
	}
}

func messageModelToDomain(m MessageModel) domain.Message {
	return domain.Message{
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
		ID:        m.ID,
		Role:      domain.MessageRole(m.Role),
		Sequence:  m.Sequence,
		Status:    domain.MessageStatus(m.Status),
		TaskID:    m.TaskID,
	}
}

func periodicalModelToDomain(m PeriodicalTaskModel) domain.PeriodicalTask {
	return domain.PeriodicalTask{
		AutoStart:       m.AutoStart,
		BoardID:         m.BoardID,
		CreatedAt:       m.CreatedAt,
		Description:     m.Description,
		Enabled:         m.Enabled,
		ExecutionCount:  m.ExecutionCount,
		Executor:        m.Executor,
		ID:              m.ID,
		LastExecutedAt:  m.LastExecutedAt,
		NextExecutionAt: m.NextExecutionAt,
		Schedule:        m.Schedule,
		Title:           m.Title,
	}
}

func domainToPeriodicalModel(p domain.PeriodicalTask) PeriodicalTaskModel {
	return PeriodicalTaskModel{
		AutoStart:       p.AutoStart,
		BoardID:         p.BoardID,
		CreatedAt:       p.CreatedAt,
		Description:     p.Description,
		Enabled:         p.Enabled,
		ExecutionCount:  p.ExecutionCount,
		Executor:        p.Executor,
		ID:              p.ID,
		LastExecutedAt:  p.LastExecutedAt,
		NextExecutionAt: p.NextExecutionAt,
		Schedule:        p.Schedule,
		Title:           p.Title,
	}
}

func taskModelToDomain(m TaskModel) domain.Task {
	return domain.Task{
		AgentStatus:        domain.AgentStatus(m.AgentStatus),
		AgentStatusMessage: m.AgentStatusMessage,
		BoardID:            m.BoardID,
		ColumnID:           m.ColumnID,
		ErrorMessage:       m.ErrorMessage,
		ID:                 m.ID,
		InProgress:         m.InProgress,
		Title:              m.Title,
		UpdatedAt:          m.UpdatedAt,
		WorkingDirectory:   m.WorkingDirectory,
		WorktreeBranch:     m.WorktreeBranch,
		WorktreePath:       m.WorktreePath,
	}
}

func columnModelToDomain(m ColumnModel) domain.Column {
	return domain.Column{
		BoardID: m.BoardID,
		ID:      m.ID,
		Name:    m.Name,
		Settings: domain.ColumnSettings{
			HooksEnabled:       m.HooksEnabled,
			MaxConcurrentTasks: m.MaxConcurrentTasks,
		},
	}
}
