package controllers

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/keylinehq/keyline-backend/api/controllers/sellercontext"
	"github.com/keylinehq/keyline-backend/api/responses"
	"github.com/keylinehq/keyline-backend/api/validators"
	"github.com/keylinehq/keyline-backend/internal/inventory"
	"github.com/keylinehq/keyline-backend/pkg/enums"
	pkgerrors "github.com/keylinehq/keyline-backend/pkg/errors"
	"github.com/keylinehq/keyline-backend/pkg/logger"
)

const uploadFieldName = "file"

// UploadInventory accepts a multipart text upload and appends it as a new
// batch of the product.
func UploadInventory(svc *inventory.Service, maxUploadBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		shopID, err := sellercontext.ResolveShopID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		productID, err := validators.ParseURLUUID(r, "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if maxUploadBytes <= 0 {
			maxUploadBytes = inventory.DefaultMaxUploadBytes
		}
		filename, content, err := validators.ReadMultipartFile(r, uploadFieldName, maxUploadBytes)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Upload(r.Context(), shopID, productID, filename, content)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

type deleteInventoryRequest struct {
	Lines []string `json:"lines" validate:"omitempty,min=1,dive,required"`
	Count int      `json:"count" validate:"omitempty,min=1"`
}

// DeleteInventory removes unsold lines either by key list or by count.
func DeleteInventory(svc *inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		shopID, err := sellercontext.ResolveShopID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		productID, err := validators.ParseURLUUID(r, "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload deleteInventoryRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Delete(r.Context(), shopID, productID, inventory.DeleteInput{
			Lines: payload.Lines,
			Count: payload.Count,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// ListInventoryBatches returns the product's batches oldest-first.
func ListInventoryBatches(svc *inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		shopID, err := sellercontext.ResolveShopID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		productID, err := validators.ParseURLUUID(r, "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		batches, err := svc.ListBatches(r.Context(), shopID, productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"batches": batches})
	}
}

// ListInventoryLines returns the seller view of individual lines.
func ListInventoryLines(svc *inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		shopID, err := sellercontext.ResolveShopID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		productID, err := validators.ParseURLUUID(r, "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		scope, err := validators.ParseQueryEnum(r, "scope", enums.ExportScopeAll, enums.ParseExportScope)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		lines, err := svc.Lines(r.Context(), shopID, productID, scope)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"lines": lines})
	}
}

// ExportInventory streams the product's lines as a file attachment.
func ExportInventory(svc *inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		shopID, err := sellercontext.ResolveShopID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		productID, err := validators.ParseURLUUID(r, "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		opts, err := parseExportOptions(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		// Headers must go out before the first streamed byte.
		w.Header().Set("Content-Type", exportContentType(opts.Format))
		w.Header().Set("Content-Disposition",
			fmt.Sprintf("attachment; filename=%q", inventory.ExportFilename(productID, opts)))

		tracked := &trackedWriter{ResponseWriter: w}
		if _, _, err := svc.Export(r.Context(), tracked, shopID, productID, opts); err != nil {
			if tracked.wrote {
				// Too late for an error envelope; the stream is cut short.
				if logg != nil {
					logg.Error(r.Context(), "inventory.export.stream_aborted", err)
				}
				return
			}
			w.Header().Del("Content-Disposition")
			w.Header().Del("Content-Type")
			responses.WriteError(r.Context(), logg, w, err)
		}
	}
}

func parseExportOptions(r *http.Request) (inventory.ExportOptions, error) {
	scope, err := validators.ParseQueryEnum(r, "scope", enums.ExportScopeAvailable, enums.ParseExportScope)
	if err != nil {
		return inventory.ExportOptions{}, err
	}
	mode, err := validators.ParseQueryEnum(r, "mode", enums.ExportModeFull, enums.ParseExportMode)
	if err != nil {
		return inventory.ExportOptions{}, err
	}
	format, err := validators.ParseQueryEnum(r, "format", enums.ExportFormatTxt, enums.ParseExportFormat)
	if err != nil {
		return inventory.ExportOptions{}, err
	}
	// Full-content streams hand the seller the sellable secrets themselves
	// and are audited as downloads; keys-only streams are audited as exports.
	action := enums.InventoryActionDownload
	if mode == enums.ExportModeKeys {
		action = enums.InventoryActionExport
	}
	return inventory.ExportOptions{
		Scope:  scope,
		Mode:   mode,
		Format: format,
		Action: action,
	}, nil
}

func exportContentType(format enums.ExportFormat) string {
	if format == enums.ExportFormatCSV {
		return "text/csv; charset=utf-8"
	}
	return "text/plain; charset=utf-8"
}

type trackedWriter struct {
	http.ResponseWriter
	wrote bool
}

func (t *trackedWriter) Write(p []byte) (int, error) {
	t.wrote = true
	return t.ResponseWriter.Write(p)
}

// InventoryHistory pages through the audit log, shop-wide or per product.
func InventoryHistory(svc *inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		shopID, err := sellercontext.ResolveShopID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		productID := uuid.Nil
		if raw := chi.URLParam(r, "productID"); raw != "" {
			productID, err = validators.ParseURLUUID(r, "productID")
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		limit, err := validators.ParseQueryInt(r, "limit", 20, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cursor := r.URL.Query().Get("cursor")

		history, err := svc.History(r.Context(), shopID, productID, limit, cursor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, history)
	}
}
