package controllers

import (
	"net/http"

	"github.com/cashdash/cashdash-backend/api/responses"
	"github.com/cashdash/cashdash-backend/internal/refunds"
	pkgerrors "github.com/cashdash/cashdash-backend/pkg/errors"
	"github.com/cashdash/cashdash-backend/pkg/logger"
)

// RouteRefund re-drives refund routing for a cancelled order. The route sits
// behind the internal shared-secret middleware and is retry-safe: the job
// upsert is keyed by order, so repeated calls converge on one refund.
func RouteRefund(svc refunds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "refunds service unavailable"))
			return
		}

		orderID, err := pathUUID(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.RouteForOrder(r.Context(), orderID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, map[string]string{"status": "routed"})
	}
}
