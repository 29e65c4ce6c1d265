package controllers

import (
	"net/http"

	"github.com/keylinehq/keyline-backend/api/middleware"
	"github.com/keylinehq/keyline-backend/api/responses"
)

func PublicPing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]string{"scope": "public", "status": "ok"})
	}
}

func PrivatePing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]string{"scope": "private", "status": "ok"}
		if shop := middleware.ShopIDFromContext(r.Context()); shop != "" {
			payload["shop_id"] = shop
		}
		responses.WriteSuccess(w, payload)
	}
}
