// Seed loads the fine rule table and a default admin account. Safe to run
// repeatedly; rules are upserted and the admin is only created once.
package main

import (
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/trafficgrid/backend/database"
	"github.com/trafficgrid/backend/models"
	"github.com/trafficgrid/backend/repository"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var fineRules = []models.FineRule{
	{ViolationType: "NO_HELMET", BaseAmount: 500, RepeatMultiplier: 1.5},
	{ViolationType: "RED_LIGHT", BaseAmount: 1000, RepeatMultiplier: 2.0},
	{ViolationType: "WRONG_WAY", BaseAmount: 1500, RepeatMultiplier: 2.5},
	{ViolationType: "TRIPLE_RIDING", BaseAmount: 800, RepeatMultiplier: 1.5},
	{ViolationType: "OVERSPEED", BaseAmount: 1200, RepeatMultiplier: 2.0},
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	db, err := database.Connect()
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer database.Close(db)

	repos := repository.New(db)

	for i := range fineRules {
		if err := repos.FineRules.Upsert(&fineRules[i]); err != nil {
			log.Fatalf("❌ Failed to seed fine rule %s: %v", fineRules[i].ViolationType, err)
		}
		log.Printf("✅ Fine rule %s: base %d, multiplier %.1f",
			fineRules[i].ViolationType, fineRules[i].BaseAmount, fineRules[i].RepeatMultiplier)
	}

	if err := seedAdmin(db); err != nil {
		log.Fatalf("❌ Failed to seed admin user: %v", err)
	}

	log.Println("✅ Seed complete")
}

func seedAdmin(db *gorm.DB) error {
	email := os.Getenv("ADMIN_EMAIL")
	if email == "" {
		email = "admin@trafficgrid.local"
	}
	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		password = "changeme"
	}

	var count int64
	if err := db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		log.Printf("✅ Admin user %s already exists", email)
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	admin := models.User{
		ID:             uuid.New().String(),
		Name:           "Administrator",
		Email:          email,
		PasswordHash:   string(hash),
		Role:           "admin",
		ClearanceLevel: 5,
	}
	if err := db.Create(&admin).Error; err != nil {
		return err
	}
	log.Printf("✅ Admin user %s created", email)
	return nil
}
