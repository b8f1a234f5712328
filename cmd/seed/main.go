// seed inserts a development user and a fresh one-hour session, then prints the session token.
// Use the token as the session_token cookie or as "Authorization: Bearer <token>".
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"studyassist/backend/internal/config"
	"studyassist/backend/internal/db"
	"studyassist/backend/internal/security"
	"studyassist/backend/internal/session/domain"
	"studyassist/backend/internal/session/repository"
)

const (
	devUsername = "dev"
	devEmail    = "dev@example.com"
	sessionTTL  = time.Hour
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	ctx := context.Background()

	user := domain.UserIdentity{Username: devUsername, Email: devEmail}
	var repo repository.Repository

	switch cfg.SessionStore {
	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer client.Close()
		// Redis keeps the identity inside the session hash; there is no users table.
		user.ID = "dev-user-001"
		repo = repository.NewRedisRepository(client, repository.DefaultRetention)
	default:
		conn, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db: %v", err)
		}
		defer conn.Close()
		pg := repository.NewPostgresRepository(conn)
		if err := pg.CreateUser(ctx, &user); err != nil {
			log.Fatalf("create user: %v", err)
		}
		repo = pg
	}

	token, err := security.NewSessionToken()
	if err != nil {
		log.Fatalf("token: %v", err)
	}
	now := time.Now().UTC()
	s := &domain.Session{
		Token:        token,
		UserID:       user.ID,
		ExpiresAt:    now.Add(sessionTTL),
		LastActiveAt: now,
		CreatedAt:    now,
		User:         user,
	}
	if err := repo.Create(ctx, s); err != nil {
		log.Fatalf("create session: %v", err)
	}

	log.Printf("seeded user %s (%s), session %s expires %s", user.Email, user.ID, s.ID, s.ExpiresAt.Format(time.RFC3339))
	fmt.Println(token)
}
