package main

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"vetap/src/db"
	"vetap/src/ledger"
	"vetap/src/models"
	"vetap/src/types"
	"vetap/src/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type passRequestParams struct {
	ID uuid.UUID `uri:"id" binding:"required"`
}

func passHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/guests/:id/pass", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var body types.IssuePassRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			pass, payload, err := utils.IssuePass(params.ID, body.AllowedZone)
			if err != nil {
				log.Printf("error issuing pass for Guest [%d]: %s", params.ID, err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"data": pass, "payload": payload})
		}).
		GET("/guests/:id/passes", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var passes []models.Pass
			db := db.GetDb()
			if err := db.Where(&models.Pass{GuestID: params.ID}).Find(&passes).Error; err != nil {
				log.Printf("Error retrieving Passes for Guest [%d]: %s\n", params.ID, err.Error())
				ctx.Status(http.StatusBadRequest)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": passes})
		}).
		POST("/passes/:id/revoke", func(ctx *gin.Context) {
			var params passRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			pass, err := ledger.Revoke(db.GetDb(), params.ID)
			if err != nil {
				log.Printf("error revoking Pass [%s]: %s", params.ID, err.Error())
				if errors.Is(err, ledger.ErrPassNotFound) {
					ctx.Status(http.StatusNotFound)
					return
				}
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": pass})
		}).
		GET("/passes/:id/code", func(ctx *gin.Context) {
			var params passRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			pass, err := ledger.Get(db.GetDb(), params.ID)
			if err != nil {
				log.Printf("Error retrieving Pass [%s]: %s\n", params.ID, err.Error())
				ctx.Status(http.StatusNotFound)
				return
			}
			if pass.Status == types.PASS_REVOKED {
				ctx.JSON(http.StatusGone, gin.H{"error": "pass has been revoked"})
				return
			}
			path, err := utils.RenderPassCode(pass)
			if err != nil {
				log.Printf("error rendering pass code [%s]: %s", params.ID, err.Error())
				ctx.Status(http.StatusInternalServerError)
				return
			}
			ctx.FileAttachment(path, fmt.Sprintf("pass-%s.jpeg", pass.ID))
		})
	return g
}
