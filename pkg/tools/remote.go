package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hearthlabs/hearth/pkg/mcp"
)

// RemoteCaller is the slice of the mcp client the remote wrappers need.
type RemoteCaller interface {
	CallTool(ctx context.Context, name string, args map[string]any) (mcp.ToolResult, error)
}

// RegisterRemote wraps each device-subsystem tool as a transport-backed
// handler and registers it. Returns the number registered.
func RegisterRemote(registry *Registry, caller RemoteCaller, infos []mcp.ToolInfo, logger *slog.Logger) int {
	if logger == nil {
		logger = slog.Default()
	}
	count := 0
	for _, info := range infos {
		params, err := schemaToMap(info.InputSchema)
		if err != nil {
			logger.Warn("skipping remote tool with bad schema", "name", info.Name, "err", err)
			continue
		}
		name := info.Name
		registry.Register(&Tool{
			Name:        name,
			Description: info.Description,
			Parameters:  params,
			Remote:      true,
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				res, err := caller.CallTool(ctx, name, args)
				if err != nil {
					if errors.Is(err, mcp.ErrUnavailable) || errors.Is(err, mcp.ErrNotReady) {
						return "", fmt.Errorf("device control is unavailable: %w", err)
					}
					return "", err
				}
				if res.IsError {
					return "", errors.New(res.Text)
				}
				return res.Text, nil
			},
		})
		count++
	}
	return count
}

func schemaToMap(raw json.RawMessage) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}
