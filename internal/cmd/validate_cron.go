package cmd

import (
	"fmt"
	"time"

	"quadro/internal/domain"
	"quadro/internal/services"
)

// ValidateCronCmd validates a cron expression
type ValidateCronCmd struct {
	Expression string `help:"Cron expression to validate (5 fields)" arg:""`
}

// Run validates the expression and prints the next execution time
func (v *ValidateCronCmd) Run() error {
	if err := domain.ValidateCronExpression(v.Expression); err != nil {
		return err
	}

	next, err := services.NextCronExecution(v.Expression, time.Now().UTC())
	if err != nil {
		return err
	}

	fmt.Printf("valid, next execution at %s\n", next.Format(time.RFC3339))
	return nil
}
