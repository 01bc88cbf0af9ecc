package middlewares

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"tbs/src/lib"
	"time"

	"github.com/gin-gonic/gin"
)

// VerifyIdToken is the mobile-client variant: the identity provider's ID
// token is verified with Firebase Auth and cached so push tokens can be
// looked up later.
func VerifyIdToken(ctx *gin.Context) {
	idToken := ctx.GetHeader("Authorization")
	if idToken == "" {
		err := errors.New("missing authorization header")
		log.Printf("Check failed: %s\n", err.Error())
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	fauth, err := lib.GetFirebaseAuth()
	if err != nil {
		log.Printf("Error retrieving Firebase Auth instance: %s\n", err.Error())
		ctx.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	token, err := fauth.VerifyIDToken(ctx, idToken)
	if err != nil {
		msg := "Failed to verify ID token"
		log.Printf("Failed to verify ID token: %s\n", err.Error())
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
		return
	}
	rd := lib.GetRedisClient()
	if rd != nil {
		rd.Set(context.Background(), fmt.Sprintf("%s:token", token.UID), idToken, 24*time.Hour)
	}
	ctx.Set("uid", token.UID)
	ctx.Set("customer", token.UID)
	if email, ok := token.Claims["email"].(string); ok {
		ctx.Set("email", email)
	}
	if name, ok := token.Claims["name"].(string); ok {
		ctx.Set("name", name)
	}
	ctx.Set("bearer", idToken)
}
