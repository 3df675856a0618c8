package disasm

import "fmt"

// ToolNotFoundError reports that the disassembler command could not be located.
type ToolNotFoundError struct {
	Command string
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("command '%s' not found. check your PATH", e.Command)
}

// ToolExecutionError reports that the disassembler exited with a failure status.
type ToolExecutionError struct {
	CommandLine string
	Stderr      string
	Err         error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("%s: %v", e.CommandLine, e.Err)
}

func (e *ToolExecutionError) Unwrap() error { return e.Err }
