package tools

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
)

// ErrToolNotFound is returned for a name no tool is registered under.
var ErrToolNotFound = errors.New("tool not found")

// ToolManager is the registry of chat tools, keyed by name.
type ToolManager struct {
	tools map[string]Tool
}

// NewToolManager creates an empty registry.
func NewToolManager() *ToolManager {
	return &ToolManager{
		tools: make(map[string]Tool),
	}
}

// RegisterTool adds tool, replacing any tool with the same name.
func (m *ToolManager) RegisterTool(tool Tool) {
	m.tools[tool.Name()] = tool
}

// Len reports how many tools are registered.
func (m *ToolManager) Len() int {
	return len(m.tools)
}

// Names returns the registered tool names in sorted order.
func (m *ToolManager) Names() []string {
	names := make([]string, 0, len(m.tools))
	for name := range m.tools {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// List returns all registered tools sorted by name.
func (m *ToolManager) List() []Tool {
	ts := make([]Tool, 0, len(m.tools))
	for _, t := range m.tools {
		ts = append(ts, t)
	}
	sort.Slice(ts, func(i, j int) bool { return ts[i].Name() < ts[j].Name() })
	return ts
}

// GetTool retrieves a tool by name.
func (m *ToolManager) GetTool(name string) (Tool, error) {
	tool, ok := m.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return tool, nil
}

// Run looks up the tool called name and runs it with the JSON args.
func (m *ToolManager) Run(ctx context.Context, name, args string) (string, error) {
	tool, err := m.GetTool(name)
	if err != nil {
		return "", err
	}
	out, err := tool.Run(ctx, args)
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}
