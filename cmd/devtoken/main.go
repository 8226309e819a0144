// Command devtoken mints an access token for local testing, signed with the
// same config the server loads.
//
//	go run ./cmd/devtoken -user <profile-id> -role hospital
package main

import (
	"flag"
	"fmt"
	"os"

	"blood-connect/backend/config"
	"blood-connect/backend/pkg/jwt"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	userID := flag.String("user", "", "profile id to embed as user_id")
	role := flag.String("role", "", "role claim (hospital, donor or admin)")
	flag.Parse()

	if *userID == "" {
		fmt.Fprintln(os.Stderr, "-user is required")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	token, err := jwt.NewManager(&cfg.Auth).GenerateAccessToken(*userID, *role)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sign token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
