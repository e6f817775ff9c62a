// Command issue-token signs an access token for a user id and role. The
// service does not manage accounts; tokens normally come from the identity
// provider that shares JWT_SECRET.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/stemsi/litmusq-backend/internal/config"
	"github.com/stemsi/litmusq-backend/internal/service"
	"golang.org/x/term"
)

func main() {
	var (
		userID int
		role   string
		prompt bool
	)
	flag.IntVar(&userID, "user", 0, "User ID to embed in the token")
	flag.StringVar(&role, "role", string(service.RoleUser), "Role: user or admin")
	flag.BoolVar(&prompt, "prompt-secret", false, "Read the signing secret from the terminal instead of JWT_SECRET")
	flag.Parse()

	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── CLI Input ─────────────────────────────────────────────────────
	reader := bufio.NewReader(os.Stdin)

	if userID <= 0 {
		fmt.Print("Enter User ID: ")
		raw, _ := reader.ReadString('\n')
		id, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || id <= 0 {
			fmt.Println("Error: User ID must be a positive number")
			os.Exit(1)
		}
		userID = id
	}

	r := service.Role(strings.ToLower(role))
	if r != service.RoleUser && r != service.RoleAdmin {
		fmt.Println("Error: role must be 'user' or 'admin'")
		os.Exit(1)
	}

	if prompt {
		fd := int(os.Stdin.Fd())
		if !term.IsTerminal(fd) {
			fmt.Println("Error: -prompt-secret needs an interactive terminal")
			os.Exit(1)
		}
		fmt.Print("Enter Signing Secret: ")
		secret, err := term.ReadPassword(fd)
		fmt.Println() // Newline after secret input
		if err != nil {
			fmt.Println("Error reading secret")
			os.Exit(1)
		}
		if len(secret) < 16 {
			fmt.Println("Error: secret must be at least 16 characters")
			os.Exit(1)
		}
		cfg.JWTSecret = string(secret)
	}

	// ─── Logic ─────────────────────────────────────────────────────────
	token, err := service.NewAuthService(cfg).GenerateToken(userID, r)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
}
