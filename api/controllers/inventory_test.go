package controllers

import (
	"net/http/httptest"
	"testing"

	"github.com/keylinehq/keyline-backend/pkg/enums"
	pkgerrors "github.com/keylinehq/keyline-backend/pkg/errors"
)

func TestParseExportOptionsAuditAction(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantMode   enums.ExportMode
		wantAction enums.InventoryAction
	}{
		{
			name:       "full content defaults to download",
			query:      "",
			wantMode:   enums.ExportModeFull,
			wantAction: enums.InventoryActionDownload,
		},
		{
			name:       "explicit full mode is a download",
			query:      "?mode=full&scope=all&format=csv",
			wantMode:   enums.ExportModeFull,
			wantAction: enums.InventoryActionDownload,
		},
		{
			name:       "keys mode is an export",
			query:      "?mode=keys",
			wantMode:   enums.ExportModeKeys,
			wantAction: enums.InventoryActionExport,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/inventory/export"+tc.query, nil)
			opts, err := parseExportOptions(r)
			if err != nil {
				t.Fatalf("parse options: %v", err)
			}
			if opts.Mode != tc.wantMode {
				t.Fatalf("expected mode %q, got %q", tc.wantMode, opts.Mode)
			}
			if opts.Action != tc.wantAction {
				t.Fatalf("expected action %q, got %q", tc.wantAction, opts.Action)
			}
		})
	}
}

func TestParseExportOptionsRejectsUnknownValues(t *testing.T) {
	r := httptest.NewRequest("GET", "/inventory/export?scope=everything", nil)
	if _, err := parseExportOptions(r); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
