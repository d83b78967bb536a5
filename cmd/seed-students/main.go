package main

import (
	"context"
	"fmt"
	"time"

	"github.com/stemsi/bimbel-backend/internal/config"
	"github.com/stemsi/bimbel-backend/internal/database"
	"github.com/stemsi/bimbel-backend/internal/logger"
	"github.com/stemsi/bimbel-backend/internal/model"
	"github.com/stemsi/bimbel-backend/internal/notify"
	"github.com/stemsi/bimbel-backend/internal/repository"
	"github.com/stemsi/bimbel-backend/internal/service"
)

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	studentRepo := repository.NewStudentRepository(pool)
	examRepo := repository.NewExamRepository(pool)
	progressRepo := repository.NewProgressRepository(pool)

	bus := notify.NewBus(rdb, log)
	authService := service.NewAuthService(cfg, rdb)
	studentService := service.NewStudentService(studentRepo, examRepo, progressRepo, authService, bus, log)

	fmt.Println("=== Seeding 50 Students ===")

	names := []string{
		"Budi Santoso", "Siti Aminah", "Andi Pratama", "Rina Wati", "Joko Susilo",
		"Ayu Lestari", "Dodi Kusuma", "Eka Putri", "Fahri Hamzah", "Gita Savitri",
		"Hendra Gunawan", "Ika Sari", "Jamal Mirdad", "Kiki Fatmala", "Lukman Hakim",
		"Maya Septiana", "Nanda Pratama", "Oki Setiana", "Putri Dian", "Qori Maharani",
		"Rafi Ahmad", "Siska Saraswati", "Toni Setiawan", "Umi Kalsum", "Vina Panduwinata",
		"Wahyu Hidayat", "Xena Maharani", "Yudi Pratama", "Zaki Anwar", "Alifia Zahra",
		"Bagas Saputra", "Citra Kirana", "Dimas Anggara", "Elisa Novita", "Fikri Maulana",
		"Gali Rakasiwi", "Hani Hanifah", "Iqbal Ramadhan", "Jasmine Azzahra", "Kevin Sanjaya",
		"Larasati Dewi", "Miko Pambudi", "Nia Ramadhani", "Oscar Lawalata", "Puput Melati",
		"Reza Rahadian", "Sari Nila", "Tigor Siahaan", "Utari Maharani", "Vicky Prasetyo",
	}

	successCount := 0
	for i := 0; i < 50; i++ {
		req := &model.CreateStudentRequest{
			NISN:     fmt.Sprintf("%010d", i+1),
			Name:     names[i],
			Password: "bimbeljaya",
		}

		student, err := studentService.Create(ctx, req)
		if err != nil {
			fmt.Printf("Error creating student %s (NISN: %s): %v\n", req.Name, req.NISN, err)
		} else {
			successCount++
			if (i+1)%10 == 0 {
				fmt.Printf("Created %d students... (last ID: %d)\n", i+1, student.ID)
			}
		}
	}

	fmt.Printf("\nSeed completed! Successfully added %d/50 students.\n", successCount)
}
