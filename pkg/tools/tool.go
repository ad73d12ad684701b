package tools

import "context"

// Param describes one string argument of a tool.
type Param struct {
	Name        string
	Description string
	Required    bool
}

// Tool is the interface for all tools. Run receives the arguments as a JSON
// object.
type Tool interface {
	Name() string
	Description() string
	Params() []Param
	Run(ctx context.Context, args string) (string, error)
}
