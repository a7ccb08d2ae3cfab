package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/alextreichler/luxestore/internal/config"
	"github.com/alextreichler/luxestore/internal/models"
	"github.com/alextreichler/luxestore/internal/order"
	"github.com/alextreichler/luxestore/internal/store"
	"golang.org/x/crypto/bcrypt"
)

const usage = "expected 'add-user' or 'order-id' subcommand"

func main() {
	addUserCmd := flag.NewFlagSet("add-user", flag.ExitOnError)
	username := addUserCmd.String("username", "", "Username for the new user")
	password := addUserCmd.String("password", "", "Password for the new user")
	role := addUserCmd.String("role", models.RoleAdmin, "Role: admin, demo-admin or user")

	orderIDCmd := flag.NewFlagSet("order-id", flag.ExitOnError)
	prefix := orderIDCmd.String("prefix", "", "Order id prefix (defaults to ORDER_PREFIX)")

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	switch os.Args[1] {
	case "add-user":
		addUserCmd.Parse(os.Args[2:])
		if *username == "" || *password == "" {
			fmt.Println("username and password are required")
			addUserCmd.PrintDefaults()
			os.Exit(1)
		}
		switch *role {
		case models.RoleAdmin, models.RoleDemoAdmin, models.RoleUser:
		default:
			log.Fatalf("Unknown role %q", *role)
		}
		createUser(cfg, *username, *password, *role)
	case "order-id":
		orderIDCmd.Parse(os.Args[2:])
		p := *prefix
		if p == "" {
			p = cfg.OrderPrefix
		}
		fmt.Println(order.GenerateOrderID(p, time.Now()))
	default:
		fmt.Println(usage)
		os.Exit(1)
	}
}

func createUser(cfg *config.Config, username, password, role string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Open runs the migrations, so this works before the server ever started.
	db, err := store.Open(ctx, cfg.Store)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer db.Close()

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	user := &models.User{Username: username, Password: string(hashedPassword), Role: role}
	if err := db.CreateUser(ctx, user); err != nil {
		log.Fatalf("Failed to create user: %v", err)
	}

	fmt.Printf("User '%s' created successfully with role %s.\n", username, role)
}
