package middlewares

import (
	"log"
	"net/http"
	"os"
	"strings"

	"vetap/src/types"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
)

var jwtKey = []byte(os.Getenv("JWT_SECRET"))

func parseClaims(ctx *gin.Context) *types.Claims {
	bearerToken := ctx.Request.Header.Get("Authorization")
	if !strings.HasPrefix(bearerToken, "Bearer") {
		ctx.AbortWithStatus(http.StatusUnauthorized)
		return nil
	}
	reqToken := strings.Split(bearerToken, " ")[1]
	if reqToken == "" {
		ctx.AbortWithStatus(http.StatusUnauthorized)
		return nil
	}
	claims := &types.Claims{}
	tkn, err := jwt.ParseWithClaims(reqToken, claims, func(t *jwt.Token) (any, error) {
		return jwtKey, nil
	})
	if err != nil {
		log.Printf("token error: %s\n", err.Error())
		if err == jwt.ErrSignatureInvalid || err == jwt.ErrTokenMalformed {
			ctx.AbortWithStatus(http.StatusUnauthorized)
			return nil
		}
		ctx.AbortWithError(http.StatusUnauthorized, err)
		return nil
	}
	if !tkn.Valid {
		ctx.AbortWithStatus(http.StatusUnauthorized)
		return nil
	}
	return claims
}

// AuthMiddleware admits organizer tokens only.
func AuthMiddleware(ctx *gin.Context) {
	claims := parseClaims(ctx)
	if claims == nil {
		return
	}
	if claims.Role != "organizer" {
		ctx.AbortWithStatus(http.StatusForbidden)
		return
	}
	ctx.Set("role", claims.Role)
	ctx.Set("sub", claims.Subject)
}

// GateAuthMiddleware admits gate device tokens. The gate identity baked
// into the token is what the verifier trusts, not the request body.
func GateAuthMiddleware(ctx *gin.Context) {
	claims := parseClaims(ctx)
	if claims == nil {
		return
	}
	if claims.Role != "gate" && claims.Role != "organizer" {
		ctx.AbortWithStatus(http.StatusForbidden)
		return
	}
	ctx.Set("role", claims.Role)
	ctx.Set("event_id", claims.EventID)
	ctx.Set("gate_id", claims.GateID)
}

func SecureHeaders(ctx *gin.Context) {
	ctx.Header("X-Frame-Options", "DENY")
	ctx.Header("X-Content-Type-Options", "nosniff")
	ctx.Header("Referrer-Policy", "strict-origin-when-cross-origin")
	ctx.Next()
}
