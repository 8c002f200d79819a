package main

import (
	"log"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"marcel.works/classpoll-go/app"
	"marcel.works/classpoll-go/app/config"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalln("could not load configuration:", err.Error())
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalln("could not create logger:", err.Error())
	}
	defer logger.Sync()

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Fatal("startup failed", zap.Error(err))
	}
	if err := a.Start(); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
