package main

import (
	"log"
	"time"

	"backend/configs"
	"backend/middlewares"
	"backend/routes"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

func main() {
	cfg := configs.Load()

	db, err := configs.Open(cfg.DBSource)
	if err != nil {
		log.Fatal("failed to connect database:", err)
	}
	if err := configs.Migrate(db); err != nil {
		log.Fatal("failed to migrate database:", err)
	}
	if err := configs.SeedSuperuser(db, cfg); err != nil {
		log.Fatal("failed to seed superuser:", err)
	}

	r := gin.Default()
	r.Use(middlewares.CORSMiddleware(cfg.FrontendURL))

	// One password reset request per client per minute.
	resetLimiter := middlewares.NewClientLimiter(rate.Every(time.Minute), 1)
	routes.Setup(r, db, cfg, resetLimiter)

	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal("server stopped:", err)
	}
}
