package enums

import "fmt"

// InventoryAction identifies the kind of audit event appended to the inventory log.
type InventoryAction string

const (
	InventoryActionUpload   InventoryAction = "upload"
	InventoryActionDelete   InventoryAction = "delete"
	InventoryActionDownload InventoryAction = "download"
	InventoryActionExport   InventoryAction = "export"
)

var validInventoryActions = []InventoryAction{
	InventoryActionUpload,
	InventoryActionDelete,
	InventoryActionDownload,
	InventoryActionExport,
}

// String implements fmt.Stringer.
func (a InventoryAction) String() string {
	return string(a)
}

// IsValid reports whether the value is a known InventoryAction.
func (a InventoryAction) IsValid() bool {
	for _, candidate := range validInventoryActions {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseInventoryAction converts raw input into an InventoryAction.
func ParseInventoryAction(value string) (InventoryAction, error) {
	for _, candidate := range validInventoryActions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid inventory action %q", value)
}
