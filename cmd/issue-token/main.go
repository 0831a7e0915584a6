package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/pragati/exam-engine/internal/config"
	"github.com/pragati/exam-engine/internal/logger"
	"github.com/pragati/exam-engine/internal/service"
	"golang.org/x/term"
)

func main() {
	var (
		studentID int
		expiry    time.Duration
	)
	flag.IntVar(&studentID, "student", 0, "Student id to issue the token for")
	flag.DurationVar(&expiry, "expiry", 0, "Token lifetime (defaults to JWT_EXPIRY_HOURS)")
	flag.Parse()

	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	if studentID <= 0 {
		fmt.Fprintln(os.Stderr, "Usage: issue-token -student <id> [-expiry 2h]")
		os.Exit(2)
	}
	if expiry > 0 {
		cfg.JWTExpiry = expiry
	}

	token, err := service.NewAuthService(cfg).GenerateStudentToken(studentID)
	if err != nil {
		log.Fatal().Err(err).Int("student_id", studentID).Msg("Failed to issue token")
	}

	// Piped output carries only the token so it can be captured by scripts.
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Println(token)
		return
	}

	fmt.Println("=== Student Token ===")
	fmt.Printf("Student:    %d\n", studentID)
	fmt.Printf("Expires in: %s\n", cfg.JWTExpiry)
	fmt.Printf("Token:      %s\n", token)
	fmt.Println()
	fmt.Printf("curl -H 'Authorization: Bearer %s' http://localhost:%s/api/v1/student/exams\n", token, cfg.ServerPort)
}
