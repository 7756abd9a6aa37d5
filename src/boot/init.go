package boot

import (
	"log"
	"time"

	"vetap/src/config"
	"vetap/src/db"
	"vetap/src/lib"
	"vetap/src/models"
	"vetap/src/types"
	"vetap/src/verifier"

	"gorm.io/gorm"
)

func InitDb() *gorm.DB {
	db := db.GetDb()

	err := db.AutoMigrate(
		&models.Event{},
		&models.Gate{},
		&models.Guest{},
		&models.Pass{},
		&models.ScanLog{},
	)
	if err != nil {
		log.Fatalf("error migration: %s", err.Error())
	}

	return db
}

func InitBroker() {
	go lib.KafkaCreateTopics("checkins-valid", "checkins-invalid")
	go lib.PingRedis()
}

func InitScheduler() {
	sched, err := lib.GetScheduler()
	if err != nil {
		log.Println("An error has occurred. Check logs for info")
		return
	}
	id, err := lib.CreateCronJob(ArchiveEndedEvents, time.Hour)
	if err != nil {
		log.Printf("Error running job: %s\n", err.Error())
		return
	}
	log.Printf("Job ID: %s\n", *id)
	sched.Start()
}

// ArchiveEndedEvents moves active events whose end time plus the
// check-in grace window has passed into the archived state.
func ArchiveEndedEvents() {
	gdb := db.GetDb()
	cutoff := time.Now().Add(-config.GraceWindow())
	var ended []models.Event
	if err := gdb.
		Where("status = ? AND ends_at < ?", types.EVENT_ACTIVE, cutoff).
		Find(&ended).
		Error; err != nil {
		log.Printf("error listing ended events: %s\n", err.Error())
		return
	}
	for _, event := range ended {
		res := gdb.
			Model(&models.Event{}).
			Where("id = ? AND status = ?", event.ID, types.EVENT_ACTIVE).
			Update("status", types.EVENT_ARCHIVED)
		if res.Error != nil {
			log.Printf("error archiving event [%d]: %s\n", event.ID, res.Error.Error())
			continue
		}
		if res.RowsAffected > 0 {
			verifier.InvalidateEventCache(event.ID)
			log.Printf("archived event [%d]\n", event.ID)
		}
	}
}
