package tools

// Display specs are data-only rendering hints for CLI frontends. The tool
// layer never renders; a frontend maps these onto its own table widgets.

// DisplaySpec describes how a frontend should present a tool's execution
// and result.
type DisplaySpec struct {
	Executing ExecutingConfig `json:"executing"`
	Result    ResultConfig    `json:"result"`
	Name      string          `json:"display_name"`
}

// ExecutingConfig styles the in-flight state of a tool call.
type ExecutingConfig struct {
	Message  string   `json:"message"`
	Icon     string   `json:"icon,omitempty"`
	ShowArgs []string `json:"show_args,omitempty"`
}

// ResultConfig selects the result presentation. Format is "table" or
// "text"; Items and ErrorField name the payload keys holding rows and
// error messages.
type ResultConfig struct {
	Format     string       `json:"format"`
	Title      string       `json:"title,omitempty"`
	Items      string       `json:"items,omitempty"`
	ErrorField string       `json:"error_field,omitempty"`
	Table      *TableConfig `json:"table,omitempty"`
}

// TableConfig lays out tabular results.
type TableConfig struct {
	Columns []ColumnDef `json:"columns"`
	MaxRows int         `json:"max_rows,omitempty"`
}

// ColumnDef maps one payload field onto a table column.
type ColumnDef struct {
	Field  string `json:"field"`
	Header string `json:"header"`
	Style  string `json:"style,omitempty"`
}

// Displayer is implemented by tools that carry a display spec.
type Displayer interface {
	DisplaySpec() *DisplaySpec
}

// Display returns the display spec for a registered tool name, or nil when
// the tool is unknown or carries none.
func Display(name string) *DisplaySpec {
	tool, err := Create(name)
	if err != nil {
		return nil
	}
	if d, ok := tool.(Displayer); ok {
		return d.DisplaySpec()
	}
	return nil
}
