package boot

import (
	"log"
	"tbs/src/common"
	"tbs/src/config"
	"tbs/src/db"
	"tbs/src/lib"
	"tbs/src/models"
	"time"

	"gorm.io/gorm"
)

func InitDb() *gorm.DB {
	db := db.GetDb()

	err := db.AutoMigrate(
		&models.PaymentAttempt{},
	)
	if err != nil {
		log.Fatalf("error migration: %s", err.Error())
	}

	return db
}

func InitBroker() {
	common.StartQueueWorkers()
}

// InitScheduler starts the janitor that drops closed checkout sessions
// once they are old enough that nobody will ask about them again.
func InitScheduler() {
	maxAge := 4 * config.PAYMENT_DEADLINE
	id, err := lib.CreateCronJob(func(maxAge time.Duration) {
		removed := common.GetSessionRegistry().Sweep(maxAge)
		if removed > 0 {
			log.Printf("[janitor] Removed %d closed sessions\n", removed)
		}
	}, config.PAYMENT_DEADLINE, maxAge)
	if err != nil {
		log.Printf("Error running job: %s\n", err.Error())
		return
	}
	log.Printf("Job ID: %s\n", *id)

	sched, err := lib.GetScheduler()
	if err != nil {
		log.Println("An error has occurred. Check logs for info")
		return
	}
	sched.Start()
}

func StopScheduler() {
	sched, err := lib.GetScheduler()
	if err != nil {
		log.Println("Error retrieving Scheduler. Check logs for info")
		return
	}
	err = sched.Shutdown()
	if err != nil {
		log.Println("An error has occurred while shutting stopping Scheduler. Check logs for info")
		return
	}
}
