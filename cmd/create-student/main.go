package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/classforge/classforge-backend/internal/config"
	"github.com/classforge/classforge-backend/internal/database"
	"github.com/classforge/classforge-backend/internal/logger"
	"github.com/classforge/classforge-backend/internal/model"
	"github.com/classforge/classforge-backend/internal/repository"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"
)

func main() {
	staff := flag.Bool("staff", false, "Create a staff account instead of a student account")
	flag.Parse()

	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── CLI Input ─────────────────────────────────────────────────────
	reader := bufio.NewReader(os.Stdin)

	kind := "Student"
	if *staff {
		kind = "Staff"
	}
	fmt.Printf("=== Create New %s Account ===\n", kind)

	// Name
	fmt.Print("Enter Name: ")
	name, _ := reader.ReadString('\n')
	name = strings.TrimSpace(name)
	if name == "" {
		fmt.Println("Error: Name is required")
		return
	}

	// Email
	fmt.Print("Enter Email: ")
	email, _ := reader.ReadString('\n')
	email = strings.TrimSpace(email)
	if email == "" {
		fmt.Println("Error: Email is required")
		return
	}

	// Password (not echoed)
	fmt.Print("Enter Password: ")
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		fmt.Println("\nError reading password")
		return
	}
	password := string(bytePassword)
	fmt.Println()
	if len(password) < 6 {
		fmt.Println("Error: Password must be at least 6 characters")
		return
	}

	// ─── Logic ─────────────────────────────────────────────────────────
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), cfg.BcryptCost)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash password")
	}

	if *staff {
		account := &model.Staff{
			Email:        email,
			Name:         name,
			PasswordHash: string(hashedPassword),
		}
		if err := repository.NewStaffRepository(pool).Create(ctx, account); err != nil {
			log.Fatal().Err(err).Msg("Failed to create staff account")
		}
		fmt.Printf("\nSuccess! Staff '%s' (%s) created with ID: %d\n", account.Name, account.Email, account.ID)
		return
	}

	account := &model.Student{
		Email:        email,
		Name:         name,
		PasswordHash: string(hashedPassword),
	}
	if err := repository.NewStudentRepository(pool).Create(ctx, account); err != nil {
		log.Fatal().Err(err).Msg("Failed to create student account")
	}
	fmt.Printf("\nSuccess! Student '%s' (%s) created with ID: %d\n", account.Name, account.Email, account.ID)
}
