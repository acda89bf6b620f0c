package colors

import "github.com/fatih/color"

var (
	CliCmdC   = color.New(color.FgMagenta)
	SuccessC  = color.New(color.FgGreen)
	WarningC  = color.New(color.FgYellow)
	FailureC  = color.New(color.FgRed)
	FaintC    = color.New(color.Faint)
	BoldC     = color.New(color.Bold)
	RefNameC  = color.New(color.FgCyan)
	SymbolicC = color.New(color.FgBlue)
)

var (
	CliCmd   = CliCmdC.Sprint
	Success  = SuccessC.Sprint
	Warning  = WarningC.Sprint
	Failure  = FailureC.Sprint
	Faint    = FaintC.Sprint
	Bold     = BoldC.Sprint
	RefName  = RefNameC.Sprint
	Symbolic = SymbolicC.Sprint
)
