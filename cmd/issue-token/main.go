package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/stemsi/proficiency-backend/internal/config"
	"github.com/stemsi/proficiency-backend/internal/service"
	"golang.org/x/term"
)

// issue-token mints an access token for local testing and for operators
// wiring the engine behind an identity provider that is not yet live.
func main() {
	var (
		subject   string
		role      string
		name      string
		promptKey bool
	)
	flag.StringVar(&subject, "sub", "", "Examinee or reviewer ID (token subject)")
	flag.StringVar(&role, "role", string(service.RoleExaminee), "examinee, reviewer or admin")
	flag.StringVar(&name, "name", "", "Display name")
	flag.BoolVar(&promptKey, "prompt-secret", false, "Read the signing secret from the terminal instead of JWT_SECRET")
	flag.Parse()

	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── CLI Input ─────────────────────────────────────────────────────
	interactive := term.IsTerminal(int(syscall.Stdin))
	reader := bufio.NewReader(os.Stdin)

	if subject == "" && interactive {
		fmt.Print("Enter Subject: ")
		line, _ := reader.ReadString('\n')
		subject = strings.TrimSpace(line)
	}
	if subject == "" {
		fmt.Fprintln(os.Stderr, "Error: subject is required")
		os.Exit(2)
	}

	r := service.Role(strings.ToLower(strings.TrimSpace(role)))
	if !r.Valid() {
		fmt.Fprintf(os.Stderr, "Error: unknown role %q\n", role)
		os.Exit(2)
	}

	if promptKey {
		if !interactive {
			fmt.Fprintln(os.Stderr, "Error: -prompt-secret needs a terminal")
			os.Exit(2)
		}
		fmt.Print("Enter Signing Secret: ")
		secret, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println() // Newline after secret input
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error reading secret")
			os.Exit(1)
		}
		if len(secret) < 16 {
			fmt.Fprintln(os.Stderr, "Error: secret must be at least 16 characters")
			os.Exit(2)
		}
		cfg.JWTSecret = string(secret)
	}

	// ─── Issue ─────────────────────────────────────────────────────────
	token, err := service.NewAuthService(cfg).IssueToken(subject, r, name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error issuing token: %v\n", err)
		os.Exit(1)
	}

	if interactive {
		fmt.Printf("Token for %s (%s), valid %s:\n", subject, r, cfg.JWTExpiry)
	}
	fmt.Println(token)
}
