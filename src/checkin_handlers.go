package main

import (
	"errors"
	"log"
	"net/http"
	"time"

	"vetap/src/db"
	"vetap/src/types"
	"vetap/src/verifier"

	"github.com/gin-gonic/gin"
)

func checkInHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/checkin/verify", func(ctx *gin.Context) {
			var body types.VerifyCheckInRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				log.Printf("Error validating request: %s\n", err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}

			// The gate baked into the device token wins over whatever
			// the client claims in the body.
			gateId := body.GateID
			if tokenGate := ctx.GetUint("gate_id"); tokenGate > 0 {
				gateId = &tokenGate
			}

			req := &verifier.VerifyRequest{
				RawPayload: body.QRRawValue,
				EventID:    body.EventID,
				GateID:     gateId,
			}
			db := db.GetDb()
			res, err := verifier.Verify(db, req, time.Now())
			if err != nil {
				if errors.Is(err, verifier.ErrStorageUnavailable) {
					ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "Temporarily unavailable. Scan again."})
					return
				}
				log.Printf("Error on check-in verification: %s\n", err.Error())
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, res)
		})
	return g
}
