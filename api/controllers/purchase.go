package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/keylinehq/keyline-backend/api/controllers/sellercontext"
	"github.com/keylinehq/keyline-backend/api/responses"
	"github.com/keylinehq/keyline-backend/api/validators"
	"github.com/keylinehq/keyline-backend/internal/orders"
	pkgerrors "github.com/keylinehq/keyline-backend/pkg/errors"
	"github.com/keylinehq/keyline-backend/pkg/logger"
)

type purchaseRequest struct {
	ProductID string `json:"productId" validate:"required,uuid"`
}

// CreatePurchase reserves one line of the product and returns the paid order
// with its signed download link.
func CreatePurchase(svc *orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		buyerID, err := sellercontext.ResolveUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload purchaseRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		productID, err := uuid.Parse(payload.ProductID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id"))
			return
		}

		result, err := svc.Purchase(r.Context(), buyerID, productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
