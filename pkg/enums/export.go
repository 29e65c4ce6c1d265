package enums

import "fmt"

// ExportScope selects which lines an export or listing covers.
type ExportScope string

const (
	// ExportScopeAvailable yields only unsold lines.
	ExportScopeAvailable ExportScope = "available"
	// ExportScopeAll yields every line including previously sold ones.
	ExportScopeAll ExportScope = "all"
)

var validExportScopes = []ExportScope{ExportScopeAvailable, ExportScopeAll}

func (s ExportScope) String() string { return string(s) }

func (s ExportScope) IsValid() bool {
	for _, candidate := range validExportScopes {
		if candidate == s {
			return true
		}
	}
	return false
}

func ParseExportScope(value string) (ExportScope, error) {
	for _, candidate := range validExportScopes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid export scope %q", value)
}

// ExportMode selects whether full line content or just the key prefix is emitted.
type ExportMode string

const (
	ExportModeFull ExportMode = "full"
	ExportModeKeys ExportMode = "keys"
)

var validExportModes = []ExportMode{ExportModeFull, ExportModeKeys}

func (m ExportMode) String() string { return string(m) }

func (m ExportMode) IsValid() bool {
	for _, candidate := range validExportModes {
		if candidate == m {
			return true
		}
	}
	return false
}

func ParseExportMode(value string) (ExportMode, error) {
	for _, candidate := range validExportModes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid export mode %q", value)
}

// ExportFormat selects the serialization of the streamed file.
type ExportFormat string

const (
	ExportFormatTxt ExportFormat = "txt"
	ExportFormatCSV ExportFormat = "csv"
)

var validExportFormats = []ExportFormat{ExportFormatTxt, ExportFormatCSV}

func (f ExportFormat) String() string { return string(f) }

func (f ExportFormat) IsValid() bool {
	for _, candidate := range validExportFormats {
		if candidate == f {
			return true
		}
	}
	return false
}

func ParseExportFormat(value string) (ExportFormat, error) {
	for _, candidate := range validExportFormats {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid export format %q", value)
}
