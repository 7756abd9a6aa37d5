package main

import (
	"errors"
	"log"
	"net/http"
	"time"

	"vetap/src/config"
	"vetap/src/db"
	"vetap/src/models"
	"vetap/src/types"
	"vetap/src/utils"
	"vetap/src/verifier"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func eventHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/events", func(ctx *gin.Context) {
			var events []models.Event
			db := db.GetDb()
			if err := db.Order("created_at desc").Find(&events).Error; err != nil {
				log.Printf("Error retrieving Events: %s\n", err.Error())
				ctx.Status(http.StatusBadRequest)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": events})
		}).
		GET("/events/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var event models.Event
			db := db.GetDb()
			if err := db.
				Where(&models.Event{ID: params.ID}).
				Preload("Gates").
				First(&event).
				Error; err != nil {
				log.Printf("Error retrieving Event [%d]: %s\n", params.ID, err.Error())
				if errors.Is(err, gorm.ErrRecordNotFound) {
					ctx.Status(http.StatusNotFound)
					return
				}
				ctx.Status(http.StatusBadRequest)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": event})
		}).
		POST("/events", func(ctx *gin.Context) {
			var body types.CreateEventRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			id, err := utils.CreateNewEvent(&body)
			if err != nil {
				log.Printf("error creating event: %s", err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"id": id})
		}).
		PATCH("/events/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var body types.UpdateEventRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			db := db.GetDb()
			err := db.Transaction(func(tx *gorm.DB) error {
				var event models.Event
				if err := tx.Where(&models.Event{ID: params.ID}).First(&event).Error; err != nil {
					return err
				}
				if event.Status == types.EVENT_ARCHIVED {
					return errors.New("archived events cannot be edited")
				}
				updates := map[string]any{}
				startsAt := event.StartsAt
				endsAt := event.EndsAt
				if body.Name != nil {
					updates["name"] = *body.Name
				}
				if body.StartsAt != nil {
					parsed, err := time.Parse(config.TIME_PARSE_FORMAT, *body.StartsAt)
					if err != nil {
						return err
					}
					startsAt = parsed
					updates["starts_at"] = parsed
				}
				if body.EndsAt != nil {
					parsed, err := time.Parse(config.TIME_PARSE_FORMAT, *body.EndsAt)
					if err != nil {
						return err
					}
					endsAt = parsed
					updates["ends_at"] = parsed
				}
				// An edit must not leave the window inverted; body-level
				// validation only sees the fields that were sent.
				if !endsAt.After(startsAt) {
					return errors.New("ends_at must be after starts_at")
				}
				if body.Zones != nil {
					updates["zones"] = types.StringArray(*body.Zones)
				}
				if len(updates) == 0 {
					return nil
				}
				return tx.Model(&models.Event{}).Where("id = ?", params.ID).Updates(updates).Error
			})
			if err != nil {
				log.Printf("Error updating Event [%d]: %s\n", params.ID, err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			verifier.InvalidateEventCache(params.ID)
			ctx.Status(http.StatusOK)
		}).
		POST("/events/:id/publish", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if err := updateEventStatus(params.ID, types.EVENT_ACTIVE, types.EVENT_DRAFT); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			verifier.InvalidateEventCache(params.ID)
			ctx.Status(http.StatusOK)
		}).
		POST("/events/:id/archive", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if err := updateEventStatus(params.ID, types.EVENT_ARCHIVED, types.EVENT_ACTIVE); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			verifier.InvalidateEventCache(params.ID)
			ctx.Status(http.StatusOK)
		}).
		GET("/events/:id/scans", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var logs []models.ScanLog
			db := db.GetDb()
			if err := db.
				Where(&models.ScanLog{EventID: params.ID}).
				Order("scanned_at desc").
				Limit(200).
				Find(&logs).
				Error; err != nil {
				log.Printf("Error retrieving scan logs for Event [%d]: %s\n", params.ID, err.Error())
				ctx.Status(http.StatusBadRequest)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": logs})
		})
	return g
}

// updateEventStatus flips an event's status only from the expected
// previous one, same conditional-write shape the pass claim uses.
func updateEventStatus(id uint, newStatus types.EventStatus, oldStatus types.EventStatus) error {
	db := db.GetDb()
	res := db.
		Model(&models.Event{}).
		Where("id = ? AND status = ?", id, oldStatus).
		Update("status", newStatus)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errors.New("event is not in a state that allows this transition")
	}
	return nil
}
