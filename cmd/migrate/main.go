package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"classline/config"
	"classline/internal/repository"
	"classline/internal/services"
	"classline/pkg/database"

	"github.com/jackc/pgx/v5/pgxpool"
)

const usage = `
Classline - Database CLI Tool

Usage:
  migrate [command] [flags]

Commands:
  up          Run all SQL migrations
  status      Show database connection status and core tables
  seed-dev    Seed with development/test data

Flags:
  -migrations string   Path to migrations directory (default "migrations")

Examples:
  go run cmd/migrate/main.go up
  go run cmd/migrate/main.go status
  go run cmd/migrate/main.go seed-dev
`

func main() {
	migrationsDir := flag.String("migrations", "migrations", "Path to migrations directory")

	flag.Usage = func() {
		fmt.Print(usage)
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}
	command := flag.Arg(0)

	cfg := config.LoadConfig()
	ctx := context.Background()

	pool, err := database.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	defer pool.Close()

	switch command {
	case "up":
		log.Println("Running migrations...")
		if err := database.ApplyMigrations(ctx, pool, *migrationsDir); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		log.Println("Migrations completed successfully")
	case "status":
		showStatus(ctx, pool)
	case "seed-dev":
		seedDevelopment(ctx, pool, cfg)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}

func showStatus(ctx context.Context, pool *pgxpool.Pool) {
	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	log.Println("Database connection: OK")

	tables := []string{"users", "courses", "enrollments", "conversations", "participants", "messages", "message_reactions", "message_receipts"}
	for _, table := range tables {
		exists, err := database.TableExists(ctx, pool, table)
		if err != nil {
			log.Printf("Error checking table %s: %v", table, err)
			continue
		}
		if !exists {
			log.Printf("Table %-20s does not exist", table)
			continue
		}
		count, _ := database.TableCount(ctx, pool, table)
		log.Printf("Table %-20s exists (%d rows)", table, count)
	}
}

func seedDevelopment(ctx context.Context, pool *pgxpool.Pool, cfg *config.Config) {
	log.Println("Seeding development data...")

	userRepo := repository.NewUserRepository(pool)
	courseRepo := repository.NewCourseRepository(pool)
	conversationRepo := repository.NewConversationRepository(pool)
	messageRepo := repository.NewMessageRepository(pool)

	auth := services.NewAuthService(userRepo, cfg)
	conversations := services.NewConversationService(conversationRepo, courseRepo, messageRepo, userRepo)
	courses := services.NewCourseService(courseRepo, userRepo, conversations)

	teacher, err := auth.Register(ctx, services.RegisterInput{
		Email:       "teacher@classline.dev",
		Password:    "Teacher@123",
		DisplayName: "Pat Teacher",
		Role:        "teacher",
	})
	if err != nil {
		log.Fatalf("Seeding teacher failed: %v", err)
	}
	student, err := auth.Register(ctx, services.RegisterInput{
		Email:       "student@classline.dev",
		Password:    "Student@123",
		DisplayName: "Sam Student",
		Role:        "student",
	})
	if err != nil {
		log.Fatalf("Seeding student failed: %v", err)
	}

	teacherID, _ := parseID(teacher.User.ID)
	studentID, _ := parseID(student.User.ID)

	course, err := courses.Create(ctx, services.CreateCourseInput{
		Code:    "CS101",
		Title:   "Intro to Computer Science",
		OwnerID: teacherID,
	})
	if err != nil {
		log.Fatalf("Seeding course failed: %v", err)
	}
	if err := courses.Enroll(ctx, course.ID, studentID); err != nil {
		log.Fatalf("Seeding enrollment failed: %v", err)
	}

	log.Printf("Seeded course %s with teacher %s and student %s", course.Code, teacher.User.Email, student.User.Email)
}

func parseID(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}
