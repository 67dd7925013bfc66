package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// cronField describes the bounds of one cron expression field
type cronField struct {
	max  int
	min  int
	name string
}

// The standard 5-field layout: minute hour day month weekday
var cronFields = []cronField{
	{name: "minute", min: 0, max: 59},
	{name: "hour", min: 0, max: 23},
	{name: "day", min: 1, max: 31},
	{name: "month", min: 1, max: 12},
	{name: "weekday", min: 0, max: 6},
}

// ValidateCronExpression checks a 5-field cron expression. Allowed field
// forms are `*`, single values, ranges (a-b), lists (a,b,c), and steps
// (*/n or a-b/n). Errors name the offending field and why it failed.
func ValidateCronExpression(expr string) error {
	fields := strings.Fields(expr)
	if len(fields) != len(cronFields) {
		return fmt.Errorf("cron expression must have 5 fields (minute hour day month weekday), got %d", len(fields))
	}

	for i, value := range fields {
		if err := validateCronField(cronFields[i], value); err != nil {
			return err
		}
	}
	return nil
}

// validateCronField validates one field, which may be a comma-separated list
func validateCronField(field cronField, value string) error {
	for _, part := range strings.Split(value, ",") {
		if part == "" {
			return fmt.Errorf("%s field has an empty list entry in %q", field.name, value)
		}
		if err := validateCronPart(field, part); err != nil {
			return err
		}
	}
	return nil
}

// validateCronPart validates a single list entry: *, value, range, or step
func validateCronPart(field cronField, part string) error {
	base := part
	if idx := strings.Index(part, "/"); idx >= 0 {
		base = part[:idx]
		step := part[idx+1:]
		n, err := strconv.Atoi(step)
		if err != nil {
			return fmt.Errorf("%s field has non-numeric step %q", field.name, step)
		}
		if n <= 0 {
			return fmt.Errorf("%s field step must be positive, got %d", field.name, n)
		}
		if base != "*" && !strings.Contains(base, "-") {
			return fmt.Errorf("%s field step requires * or a range before /, got %q", field.name, part)
		}
	}

	if base == "*" {
		return nil
	}

	if idx := strings.Index(base, "-"); idx >= 0 {
		lo, err := parseCronValue(field, base[:idx])
		if err != nil {
			return err
		}
		hi, err := parseCronValue(field, base[idx+1:])
		if err != nil {
			return err
		}
		if lo > hi {
			return fmt.Errorf("%s field range %q is inverted", field.name, base)
		}
		return nil
	}

	_, err := parseCronValue(field, base)
	return err
}

// parseCronValue parses and bounds-checks a single numeric value
func parseCronValue(field cronField, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s field has non-numeric value %q", field.name, value)
	}
	if n < field.min || n > field.max {
		return 0, fmt.Errorf("%s field value %d is out of range %d-%d", field.name, n, field.min, field.max)
	}
	return n, nil
}
