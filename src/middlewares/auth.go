package middlewares

import (
	"errors"
	"log"
	"os"
	"strings"
	"tbs/src/types"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

var jwtKey = []byte(os.Getenv("JWT_SECRET"))

// AuthMiddleware trusts the identity provider's signed claims outright.
// There is no local user table to cross-check against.
func AuthMiddleware(ctx *gin.Context) {
	bearerToken := ctx.Request.Header.Get("Authorization")
	if !strings.HasPrefix(bearerToken, "Bearer") {
		ctx.AbortWithStatus(401)
		return
	}
	reqToken := strings.Split(bearerToken, " ")[1]
	if reqToken == "" {
		ctx.AbortWithStatus(401)
		return
	}
	claims := &types.Claims{}
	tkn, err := jwt.ParseWithClaims(reqToken, claims, func(t *jwt.Token) (any, error) {
		return jwtKey, nil
	})
	if err != nil {
		log.Printf("token error: %s\n", err.Error())
		if errors.Is(err, jwt.ErrSignatureInvalid) || errors.Is(err, jwt.ErrTokenMalformed) {
			ctx.AbortWithStatus(401)
			return
		}
		ctx.AbortWithError(401, err)
		return
	}
	if !tkn.Valid {
		ctx.AbortWithStatus(401)
		return
	}

	customerId := claims.CustomerID
	if customerId == "" {
		customerId = claims.Subject
	}
	if customerId == "" {
		ctx.AbortWithStatus(401)
		return
	}

	ctx.Set("uid", claims.UID)
	ctx.Set("customer", customerId)
	ctx.Set("name", claims.Name)
	ctx.Set("email", claims.Email)
	ctx.Set("phone", claims.Phone)
	ctx.Set("bearer", reqToken)
}

func IdentityFromContext(ctx *gin.Context) *types.Identity {
	return &types.Identity{
		UID:        ctx.GetString("uid"),
		CustomerID: ctx.GetString("customer"),
		Name:       ctx.GetString("name"),
		Email:      ctx.GetString("email"),
		Phone:      ctx.GetString("phone"),
		Bearer:     ctx.GetString("bearer"),
	}
}
