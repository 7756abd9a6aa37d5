package main

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"vetap/src/db"
	"vetap/src/models"
	"vetap/src/types"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func gateHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/events/:id/gates", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var gates []models.Gate
			db := db.GetDb()
			if err := db.Where(&models.Gate{EventID: params.ID}).Find(&gates).Error; err != nil {
				log.Printf("Error retrieving Gates for Event [%d]: %s\n", params.ID, err.Error())
				ctx.Status(http.StatusBadRequest)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": gates})
		}).
		POST("/events/:id/gates", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var body types.CreateGateRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			db := db.GetDb()
			var event models.Event
			if err := db.Where(&models.Event{ID: params.ID}).First(&event).Error; err != nil {
				log.Printf("Error retrieving Event [%d]: %s\n", params.ID, err.Error())
				if errors.Is(err, gorm.ErrRecordNotFound) {
					ctx.Status(http.StatusNotFound)
					return
				}
				ctx.Status(http.StatusBadRequest)
				return
			}
			if body.AllowedZone != nil && !event.HasZone(*body.AllowedZone) {
				ctx.JSON(http.StatusBadRequest, gin.H{
					"error": fmt.Sprintf("zone %q is not defined on this event", *body.AllowedZone),
				})
				return
			}
			gate := models.Gate{
				EventID:     event.ID,
				Name:        body.Name,
				AllowedZone: body.AllowedZone,
			}
			if err := db.Create(&gate).Error; err != nil {
				log.Printf("error creating gate: %s", err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"data": gate})
		})
	return g
}
