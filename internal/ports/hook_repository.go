package ports

import (
	"context"

	"quadro/internal/domain"
)

// HookReader reads the hook catalog
type HookReader interface {
	GetHook(ctx context.Context, id string) (*domain.Hook, error)
	ListHooks(ctx context.Context, boardID string) ([]domain.Hook, error)
}

// HookWriter manages custom hooks. System hooks are immutable and rejected.
type HookWriter interface {
	CreateHook(ctx context.Context, hook domain.Hook) error
	DeleteHook(ctx context.Context, id string) error
	UpdateHook(ctx context.Context, hook domain.Hook) error
}

// BindingReader reads column hook bindings
type BindingReader interface {
	GetBinding(ctx context.Context, id string) (*domain.ColumnHookBinding, error)
	// ListBindings returns bindings for a column ordered by position
	// ascending, ties broken by binding id.
	ListBindings(ctx context.Context, columnID string) ([]domain.ColumnHookBinding, error)
}

// BindingWriter manages column hook bindings
type BindingWriter interface {
	CreateBinding(ctx context.Context, binding domain.ColumnHookBinding) error
	DeleteBinding(ctx context.Context, id string) error
	UpdateBinding(ctx context.Context, binding domain.ColumnHookBinding) error
}

// HookRepository is the composite catalog interface
type HookRepository interface {
	BindingReader
	BindingWriter
	HookReader
	HookWriter
}
