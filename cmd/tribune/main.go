package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/golang-migrate/migrate/v4"
	migratep "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jessevdk/go-flags"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Decentr-net/logrus/sentry"

	"github.com/Decentr-net/tribune/internal/auth"
	"github.com/Decentr-net/tribune/internal/blob"
	"github.com/Decentr-net/tribune/internal/health"
	"github.com/Decentr-net/tribune/internal/server"
	"github.com/Decentr-net/tribune/internal/service/impl"
	"github.com/Decentr-net/tribune/internal/session"
	"github.com/Decentr-net/tribune/internal/storage/postgres"
	"github.com/Decentr-net/tribune/internal/token"
)

// nolint:lll,gochecknoglobals
var opts = struct {
	Host           string        `long:"http.host" env:"HTTP_HOST" default:"0.0.0.0" description:"IP to listen on"`
	Port           int           `long:"http.port" env:"HTTP_PORT" default:"8080" description:"port to listen on for insecure connections"`
	RequestTimeout time.Duration `long:"http.request-timeout" env:"HTTP_REQUEST_TIMEOUT" default:"30s" description:"request processing timeout"`

	Postgres                   string `long:"postgres" env:"POSTGRES" default:"host=localhost port=5432 user=postgres password=root sslmode=disable" description:"postgres dsn"`
	PostgresMaxOpenConnections int    `long:"postgres.max_open_connections" env:"POSTGRES_MAX_OPEN_CONNECTIONS" default:"0" description:"postgres maximal open connections count, 0 means unlimited"`
	PostgresMaxIdleConnections int    `long:"postgres.max_idle_connections" env:"POSTGRES_MAX_IDLE_CONNECTIONS" default:"5" description:"postgres maximal idle connections count"`
	PostgresMigrations         string `long:"postgres.migrations" env:"POSTGRES_MIGRATIONS" default:"scripts/migrations/postgres" description:"postgres migrations directory"`

	RedisAddr     string `long:"redis.addr" env:"REDIS_ADDR" default:"localhost:6379" description:"redis address"`
	RedisPassword string `long:"redis.password" env:"REDIS_PASSWORD" description:"redis password"`
	RedisDB       int    `long:"redis.db" env:"REDIS_DB" default:"0" description:"redis database"`

	JWTSecret       string        `long:"jwt.secret" env:"JWT_SECRET" required:"true" description:"secret used to sign tokens"`
	JWTAccessTTL    time.Duration `long:"jwt.access-ttl" env:"JWT_ACCESS_TTL" default:"5m" description:"access token lifetime"`
	JWTRefreshTTL   time.Duration `long:"jwt.refresh-ttl" env:"JWT_REFRESH_TTL" default:"24h" description:"refresh token lifetime"`
	SessionTTL      time.Duration `long:"session.ttl" env:"SESSION_TTL" default:"336h" description:"session lifetime, prolonged on every request"`
	SecureCookie    bool          `long:"session.secure-cookie" env:"SESSION_SECURE_COOKIE" description:"send session cookie over https only"`
	RedisKeysPrefix string        `long:"redis.prefix" env:"REDIS_PREFIX" default:"tribune:" description:"prefix of redis keys"`

	BlobDriver     string `long:"blob.driver" env:"BLOB_DRIVER" default:"local" choice:"local" choice:"s3" description:"images storage"`
	BlobDir        string `long:"blob.dir" env:"BLOB_DIR" default:"media" description:"directory of local images storage"`
	S3Endpoint     string `long:"s3.endpoint" env:"S3_ENDPOINT" description:"s3 endpoint, empty means aws"`
	S3Region       string `long:"s3.region" env:"S3_REGION" default:"us-east-1" description:"s3 region"`
	S3Bucket       string `long:"s3.bucket" env:"S3_BUCKET" description:"s3 bucket"`
	S3AccessKeyID  string `long:"s3.access-key-id" env:"S3_ACCESS_KEY_ID" description:"s3 access key id"`
	S3SecretKey    string `long:"s3.secret-access-key" env:"S3_SECRET_ACCESS_KEY" description:"s3 secret access key"`
	S3UsePathStyle bool   `long:"s3.path-style" env:"S3_PATH_STYLE" description:"use path-style addressing"`
	MediaURL       string `long:"media.url" env:"MEDIA_URL" default:"/media/" description:"url prefix of images in responses"`

	LogLevel  string `long:"log.level" env:"LOG_LEVEL" default:"info" description:"Log level" choice:"debug" choice:"info" choice:"warning" choice:"error"`
	SentryDSN string `long:"sentry.dsn" env:"SENTRY_DSN" description:"sentry dsn"`
}{}

var errTerminated = errors.New("terminated")

func main() {
	parser := flags.NewParser(&opts, flags.Default)
	parser.ShortDescription = "Tribune"
	parser.LongDescription = "Tribune social network API"

	_, err := parser.Parse()

	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			parser.WriteHelp(os.Stdout)
			os.Exit(0)
		}
		logrus.WithError(err).Fatal("error occurred while parsing flags")
	}

	lvl, _ := logrus.ParseLevel(opts.LogLevel) // err will always be nil
	logrus.SetLevel(lvl)

	logrus.WithFields(logrus.Fields{
		"version":     health.GetVersion(),
		"blob_driver": opts.BlobDriver,
	}).Info("service is starting")

	if opts.SentryDSN != "" {
		hook, err := sentry.NewHook(sentry.Options{
			Dsn:              opts.SentryDSN,
			AttachStacktrace: true,
			Release:          health.GetVersion(),
			ServerName:       "tribune",
		}, logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel)

		if err != nil {
			logrus.WithError(err).Fatal("failed to init sentry")
		}

		logrus.AddHook(hook)
	} else {
		logrus.Info("empty sentry dsn")
		logrus.Warn("skip sentry initialization")
	}

	db := mustGetDB()
	rdb := mustGetRedis()
	blobs := mustGetBlobStore()

	s := postgres.New(db)
	svc := impl.New(s)

	issuer := token.NewIssuer(
		[]byte(opts.JWTSecret),
		opts.JWTAccessTTL,
		opts.JWTRefreshTTL,
		token.NewRedisRevoker(rdb, opts.RedisKeysPrefix+"revoked:"),
	)
	sessions := session.NewStore(rdb, opts.RedisKeysPrefix+"session:", opts.SessionTTL)

	r := chi.NewMux()
	server.SetupRouter(server.Options{
		Service:       svc,
		Authenticator: auth.NewAuthenticator(issuer, sessions, svc),
		Tokens:        issuer,
		Sessions:      sessions,
		Blobs:         blobs,
		MediaURL:      opts.MediaURL,
		SecureCookie:  opts.SecureCookie,
	}, r, opts.RequestTimeout)

	r.Get("/health", health.Handler(
		5*time.Second,
		health.SubjectPinger("postgres", s.Ping),
		health.SubjectPinger("redis", func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}),
	))

	if opts.BlobDriver == "local" && strings.HasPrefix(opts.MediaURL, "/") {
		r.Handle(opts.MediaURL+"*", http.StripPrefix(opts.MediaURL, http.FileServer(http.Dir(opts.BlobDir))))
	}

	srv := http.Server{
		Addr:              fmt.Sprintf("%s:%d", opts.Host, opts.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	gr, ctx := errgroup.WithContext(context.Background())
	gr.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	gr.Go(func() error {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

		select {
		case s := <-sigs:
			logrus.Infof("terminating by %s signal", s)
		case <-ctx.Done():
			return nil
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), opts.RequestTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logrus.WithError(err).Error("failed to shutdown server gracefully")
		}

		return errTerminated
	})

	logrus.Info("service started")

	if err := gr.Wait(); err != nil && !errors.Is(err, errTerminated) {
		logrus.WithError(err).Fatal("tribune unexpectedly closed")
	}

	if err := rdb.Close(); err != nil {
		logrus.WithError(err).Error("failed to close redis client")
	}
	if err := db.Close(); err != nil {
		logrus.WithError(err).Error("failed to close postgres connection")
	}
}

func mustGetDB() *sql.DB {
	db, err := sql.Open("postgres", opts.Postgres)
	if err != nil {
		logrus.WithError(err).Fatal("failed to create postgres connection")
	}
	db.SetMaxOpenConns(opts.PostgresMaxOpenConnections)
	db.SetMaxIdleConns(opts.PostgresMaxIdleConnections)

	if err := db.PingContext(context.Background()); err != nil {
		logrus.WithError(err).Fatal("failed to ping postgres")
	}

	driver, err := migratep.WithInstance(db, &migratep.Config{})
	if err != nil {
		logrus.WithError(err).Fatal("failed to create database migrate driver")
	}

	migrator, err := migrate.NewWithDatabaseInstance(fmt.Sprintf("file://%s", opts.PostgresMigrations), "postgres", driver)
	if err != nil {
		logrus.WithError(err).Fatal("failed to create migrator")
	}

	switch v, d, err := migrator.Version(); err {
	case nil:
		logrus.Infof("database version %d with dirty state %t", v, d)
	case migrate.ErrNilVersion:
		logrus.Info("database version: nil")
	default:
		logrus.WithError(err).Fatal("failed to get version")
	}

	switch err := migrator.Up(); err {
	case nil:
		logrus.Info("database was migrated")
	case migrate.ErrNoChange:
		logrus.Info("database is up-to-date")
	default:
		logrus.WithError(err).Fatal("failed to migrate db")
	}

	return db
}

func mustGetRedis() *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.RedisAddr,
		Password: opts.RedisPassword,
		DB:       opts.RedisDB,
	})

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		logrus.WithError(err).Fatal("failed to ping redis")
	}

	return rdb
}

func mustGetBlobStore() blob.Store {
	var (
		b   blob.Store
		err error
	)

	switch opts.BlobDriver {
	case "s3":
		b, err = blob.NewS3(context.Background(), blob.S3Config{
			Endpoint:        opts.S3Endpoint,
			Region:          opts.S3Region,
			Bucket:          opts.S3Bucket,
			AccessKeyID:     opts.S3AccessKeyID,
			SecretAccessKey: opts.S3SecretKey,
			UsePathStyle:    opts.S3UsePathStyle,
		})
	default:
		b, err = blob.NewLocal(opts.BlobDir)
	}

	if err != nil {
		logrus.WithError(err).Fatal("failed to create blob store")
	}

	return b
}
