package main

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jessevdk/go-flags"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/Decentr-net/tribune/internal/entities"
	"github.com/Decentr-net/tribune/internal/storage"
	"github.com/Decentr-net/tribune/internal/storage/postgres"
)

// nolint:lll,gochecknoglobals
var opts = struct {
	Postgres string `long:"postgres" env:"POSTGRES" default:"host=localhost port=5432 user=postgres password=root sslmode=disable" description:"postgres dsn"`

	Username string `long:"username" required:"true" description:"username of the new account"`
	Password string `long:"password" env:"NEW_USER_PASSWORD" required:"true" description:"password of the new account"`
	Inactive bool   `long:"inactive" description:"create a disabled account"`
}{}

func main() {
	parser := flags.NewParser(&opts, flags.Default)
	parser.ShortDescription = "createuser"
	parser.LongDescription = "Creates an account which can log in to tribune"

	_, err := parser.Parse()

	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			parser.WriteHelp(os.Stdout)
			os.Exit(0)
		}
		logrus.WithError(err).Fatal("error occurred while parsing flags")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(opts.Password), bcrypt.DefaultCost)
	if err != nil {
		logrus.WithError(err).Fatal("failed to hash password")
	}

	db := mustGetDB()
	defer db.Close() // nolint:errcheck

	u := entities.User{
		ID:           uuid.New(),
		Username:     opts.Username,
		PasswordHash: string(hash),
		IsActive:     !opts.Inactive,
		CreatedAt:    time.Now().UTC(),
	}

	if err := postgres.New(db).CreateUser(context.Background(), &u); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			logrus.WithField("username", u.Username).Fatal("user already exists")
		}
		logrus.WithError(err).Fatal("failed to create user")
	}

	logrus.WithFields(logrus.Fields{
		"id":       u.ID,
		"username": u.Username,
		"active":   u.IsActive,
	}).Info("user created")
}

func mustGetDB() *sql.DB {
	db, err := sql.Open("postgres", opts.Postgres)
	if err != nil {
		logrus.WithError(err).Fatal("failed to create postgres connection")
	}

	if err := db.PingContext(context.Background()); err != nil {
		logrus.WithError(err).Fatal("failed to ping postgres")
	}

	return db
}
