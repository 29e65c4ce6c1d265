package sellercontext

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/keylinehq/keyline-backend/api/middleware"
	pkgerrors "github.com/keylinehq/keyline-backend/pkg/errors"
)

// ResolveShopID extracts the shop claim a seller token carries.
func ResolveShopID(r *http.Request) (uuid.UUID, error) {
	shopID := middleware.ShopIDFromContext(r.Context())
	if shopID == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "shop context required")
	}

	id, err := uuid.Parse(shopID)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shop id")
	}
	return id, nil
}

// ResolveUserID extracts the authenticated user from the request context.
func ResolveUserID(r *http.Request) (uuid.UUID, error) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}

	id, err := uuid.Parse(userID)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id")
	}
	return id, nil
}
