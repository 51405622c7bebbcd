package tools

import (
	"context"
	"fmt"
	"time"
)

// NewGetTime returns the local wall-clock tool.
func NewGetTime() *Tool {
	return &Tool{
		Name:        "get_time",
		Description: "Get the current local date and time.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return time.Now().Format("Monday, January 2, 2006 at 3:04 PM"), nil
		},
	}
}

// NewSetTimer returns a timer tool. When the timer fires, announce is
// invoked with a spoken notification. Timers are fire-and-forget and die
// with the process.
func NewSetTimer(announce func(text string)) *Tool {
	return &Tool{
		Name:        "set_timer",
		Description: "Set a countdown timer. Announces when the time is up.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"seconds": map[string]any{
					"type":        "number",
					"description": "Timer duration in seconds",
					"minimum":     1,
					"maximum":     86400,
				},
				"label": map[string]any{
					"type":        "string",
					"description": "Optional label, e.g. 'tea'",
				},
			},
			"required": []any{"seconds"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			secs, ok := args["seconds"].(float64)
			if !ok || secs < 1 {
				return "", fmt.Errorf("seconds must be a positive number")
			}
			label, _ := args["label"].(string)

			d := time.Duration(secs * float64(time.Second))
			time.AfterFunc(d, func() {
				if announce == nil {
					return
				}
				if label != "" {
					announce(fmt.Sprintf("Your %s timer is done.", label))
				} else {
					announce("Your timer is done.")
				}
			})

			if label != "" {
				return fmt.Sprintf("Timer %q set for %s.", label, d), nil
			}
			return fmt.Sprintf("Timer set for %s.", d), nil
		},
	}
}
