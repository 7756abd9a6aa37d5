package main

import (
	"errors"
	"log"
	"net/http"

	"vetap/src/db"
	"vetap/src/models"
	"vetap/src/types"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func guestHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/events/:id/guests", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var guests []models.Guest
			db := db.GetDb()
			if err := db.Where(&models.Guest{EventID: params.ID}).Find(&guests).Error; err != nil {
				log.Printf("Error retrieving Guests for Event [%d]: %s\n", params.ID, err.Error())
				ctx.Status(http.StatusBadRequest)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": guests})
		}).
		POST("/events/:id/guests", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var body types.CreateGuestRequestBody
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
			if event.Status == types.EVENT_ARCHIVED {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": "archived events cannot take new guests"})
				return
			}
			guestType := body.Type
			if guestType == "" {
				guestType = types.GUEST_REGULAR
			}
			guest := models.Guest{
				EventID:  event.ID,
				FullName: body.FullName,
				Type:     guestType,
				Email:    body.Email,
				Phone:    body.Phone,
			}
			if err := db.Create(&guest).Error; err != nil {
				log.Printf("error creating guest: %s", err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"data": guest})
		})
	return g
}
