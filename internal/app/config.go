package app

import (
	"time"

	"github.com/joho/godotenv"

	"github.com/edugradelab/gradelab-backend/internal/logger"
	"github.com/edugradelab/gradelab-backend/internal/utils"
)

type Config struct {
	Port             string
	JWTSecretKey     string
	TokenTTL         time.Duration
	ScannerURL       string
	AIAnalysisURL    string
	DispatchTimeout  time.Duration
	LoginAttempts    int
	LoginWindow      time.Duration
	RegisterAttempts int
	RegisterWindow   time.Duration
}

func LoadConfig(log *logger.Logger) Config {
	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file loaded", "error", err)
	}
	return Config{
		Port:             utils.GetEnv("PORT", "8080", log),
		JWTSecretKey:     utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log),
		TokenTTL:         time.Duration(utils.GetEnvAsInt("TOKEN_TTL", 604800, log)) * time.Second,
		ScannerURL:       utils.GetEnv("SCANNER_SERVICE_URL", "", log),
		AIAnalysisURL:    utils.GetEnv("AI_ANALYSIS_SERVICE_URL", "", log),
		DispatchTimeout:  time.Duration(utils.GetEnvAsInt("DISPATCH_TIMEOUT", 10, log)) * time.Second,
		LoginAttempts:    utils.GetEnvAsInt("LOGIN_RATE_LIMIT", 5, log),
		LoginWindow:      time.Duration(utils.GetEnvAsInt("LOGIN_RATE_WINDOW", 900, log)) * time.Second,
		RegisterAttempts: utils.GetEnvAsInt("REGISTER_RATE_LIMIT", 3, log),
		RegisterWindow:   time.Duration(utils.GetEnvAsInt("REGISTER_RATE_WINDOW", 3600, log)) * time.Second,
	}
}
