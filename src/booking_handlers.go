package main

import (
	"log"
	"net/http"
	"tbs/src/common"
	"tbs/src/middlewares"
	"tbs/src/types"

	"github.com/gin-gonic/gin"
)

func bookingHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/bookings/event/:id/status", func(ctx *gin.Context) {
			var params types.EventURIParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			identity := middlewares.IdentityFromContext(ctx)
			status := common.ResolveBookingState(identity, params.ID)
			ctx.JSON(http.StatusOK, gin.H{"data": status})
		}).
		POST("/bookings/event/:id/register", func(ctx *gin.Context) {
			var params types.EventURIParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			var body types.RegisterRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				log.Printf("Error in validating request: %s\n", err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			kind := types.EventKind(ctx.Query("kind"))
			identity := middlewares.IdentityFromContext(ctx)
			booking, fieldErrors, err := common.SubmitRegistration(identity, params.ID, kind, &body)
			if err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			if len(fieldErrors) > 0 {
				ctx.JSON(http.StatusBadRequest, gin.H{"errors": fieldErrors})
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"data": booking})
		})
	return g
}
