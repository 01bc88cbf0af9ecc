package main

import (
	"errors"
	"net/http"
	"tbs/src/common"
	"tbs/src/db"
	"tbs/src/middlewares"
	"tbs/src/models"
	"tbs/src/models/scopes"
	"tbs/src/types"

	"github.com/gin-gonic/gin"
)

func checkoutErrorStatus(err error) int {
	switch {
	case errors.Is(err, common.ErrBookingMissing):
		return http.StatusNotFound
	case errors.Is(err, common.ErrNotApproved):
		return http.StatusForbidden
	case errors.Is(err, common.ErrPaymentInFlight):
		return http.StatusConflict
	case errors.Is(err, common.ErrInvalidAmount), errors.Is(err, common.ErrVendorMissing):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

func ownedSession(ctx *gin.Context) *common.PaymentSession {
	var params types.SessionURIParams
	if err := ctx.ShouldBindUri(&params); err != nil {
		ctx.Status(http.StatusBadRequest)
		return nil
	}
	session := common.GetSessionRegistry().Get(params.ID)
	if session == nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": common.ErrSessionNotFound.Error()})
		return nil
	}
	if session.CustomerID != ctx.GetString("customer") {
		ctx.JSON(http.StatusForbidden, gin.H{"error": common.ErrSessionNotOwned.Error()})
		return nil
	}
	return session
}

func paymentHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/payment/checkout", func(ctx *gin.Context) {
			var body types.CheckoutRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			identity := middlewares.IdentityFromContext(ctx)
			if !identity.Authenticated() {
				ctx.Status(http.StatusUnauthorized)
				return
			}
			session, err := common.InitiateCheckout(identity, &body)
			if err != nil {
				ctx.JSON(checkoutErrorStatus(err), gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"data": session.APIResponse()})
		}).
		GET("/payment/checkout/:id", func(ctx *gin.Context) {
			session := ownedSession(ctx)
			if session == nil {
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": session.APIResponse()})
		}).
		POST("/payment/checkout/:id/signal", func(ctx *gin.Context) {
			session := ownedSession(ctx)
			if session == nil {
				return
			}
			var body types.CheckoutSignalRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			signal := types.ParseCheckoutSignal(body.Signal)
			common.HandleCheckoutSignal(session, signal)
			if signal.Kind == types.SIGNAL_UNKNOWN {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": "unrecognized signal", "data": session.APIResponse()})
				return
			}
			ctx.JSON(http.StatusAccepted, gin.H{"data": session.APIResponse()})
		}).
		POST("/payment/checkout/:id/retry", func(ctx *gin.Context) {
			var params types.SessionURIParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			identity := middlewares.IdentityFromContext(ctx)
			session, err := common.RetryCheckout(identity, params.ID)
			if err != nil {
				status := http.StatusBadGateway
				switch {
				case errors.Is(err, common.ErrSessionNotFound):
					status = http.StatusNotFound
				case errors.Is(err, common.ErrSessionNotOwned):
					status = http.StatusForbidden
				case errors.Is(err, common.ErrSessionNotClosed):
					status = http.StatusConflict
				default:
					status = checkoutErrorStatus(err)
				}
				ctx.JSON(status, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"data": session.APIResponse()})
		}).
		DELETE("/payment/checkout/:id", func(ctx *gin.Context) {
			session := ownedSession(ctx)
			if session == nil {
				return
			}
			common.AbandonSession(session)
			ctx.JSON(http.StatusOK, gin.H{"data": session.APIResponse()})
		}).
		GET("/payment/attempts", func(ctx *gin.Context) {
			customerId := ctx.GetString("customer")
			conn := db.Current()
			if conn == nil {
				sessions := common.GetSessionRegistry().ForCustomer(customerId)
				data := make([]*types.APIResponseSession, 0, len(sessions))
				for _, s := range sessions {
					data = append(data, s.APIResponse())
				}
				ctx.JSON(http.StatusOK, gin.H{"data": data, "count": len(data)})
				return
			}
			var attempts []models.PaymentAttempt
			query := conn.
				Model(&models.PaymentAttempt{}).
				Scopes(scopes.WithCustomerID(customerId)).
				Order("created_at DESC").
				Limit(20)
			if state := ctx.Query("state"); state != "" {
				query = query.Scopes(scopes.WithState(state))
			}
			if eventId := ctx.Query("event"); eventId != "" {
				query = query.Scopes(scopes.WithEventID(eventId))
			}
			if err := query.Find(&attempts).Error; err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": attempts, "count": len(attempts)})
		})
	return g
}
