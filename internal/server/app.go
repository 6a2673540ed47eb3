// Package server wires configuration, storage, mail, blob storage and the
// account and post services together and runs the HTTP API, the gRPC health endpoint
// and the passkey sweeper until the process is signalled to stop.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrijs2005/edumate/internal/cryptox"
	"github.com/dmitrijs2005/edumate/internal/filex"
	"github.com/dmitrijs2005/edumate/internal/logging"
	"github.com/dmitrijs2005/edumate/internal/server/auth"
	"github.com/dmitrijs2005/edumate/internal/server/blob"
	"github.com/dmitrijs2005/edumate/internal/server/config"
	"github.com/dmitrijs2005/edumate/internal/server/httpapi"
	"github.com/dmitrijs2005/edumate/internal/server/mail"
	"github.com/dmitrijs2005/edumate/internal/server/repositories/passkeys"
	"github.com/dmitrijs2005/edumate/internal/server/repositories/posts"
	"github.com/dmitrijs2005/edumate/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/edumate/internal/server/services"
	"github.com/dmitrijs2005/edumate/internal/timex"

	gs "github.com/dmitrijs2005/edumate/internal/server/grpc"
)

// startupTimeout bounds connecting to the stores and running migrations.
const startupTimeout = 30 * time.Second

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	mongo   *mongo.Client
	http    *httpapi.Server
	grpc    *gs.GRPCServer
	sweeper *services.Sweeper
}

func NewApp(c *config.Config) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	logger := logging.New(os.Stdout, c.LogFormat, c.LogLevel)
	app := &App{config: c, logger: logger}

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	if err := app.init(ctx); err != nil {
		app.close(context.Background())
		return nil, err
	}
	return app, nil
}

func (app *App) init(ctx context.Context) error {
	c := app.config

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	app.db = db
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("db ping error: %w", err)
	}

	var opts []repomanager.Option
	if c.MongoURL != "" {
		mdb, err := app.openMongo(ctx)
		if err != nil {
			return err
		}
		opts = append(opts,
			repomanager.WithPasskeyStore(passkeys.NewMongoStore(mdb)),
			repomanager.WithPostStore(posts.NewMongoRepository(mdb)),
		)
	}

	rm := repomanager.NewPostgresRepositoryManager(opts...)
	if err := rm.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	uploadsDir, err := filex.EnsureDir(c.UploadsDir)
	if err != nil {
		return err
	}

	mailer, err := mail.NewSender(mail.Config{
		PostmarkServerToken:  c.PostmarkServerToken,
		PostmarkAccountToken: c.PostmarkAccountToken,
		SenderEmail:          c.SenderEmail,
		SupportEmail:         c.SupportEmail,
		DevDir:               c.MailDevDir,
	})
	if err != nil {
		return fmt.Errorf("mail init error: %w", err)
	}

	uploader, err := blob.NewS3Uploader(ctx, blob.Config{
		Region:         c.S3Region,
		AccessKeyID:    c.S3RootUser,
		SecretKey:      c.S3RootPassword,
		Bucket:         c.S3Bucket,
		Endpoint:       c.S3BaseEndpoint,
		BaseURL:        c.S3PublicBaseURL,
		ForcePathStyle: c.S3ForcePathStyle,
	})
	if err != nil {
		return fmt.Errorf("blob init error: %w", err)
	}

	clock := timex.SystemClock{}
	codec, err := auth.NewCodec(auth.CodecConfig{
		SessionKey:           []byte(c.SessionKey),
		VerificationKey:      []byte(c.VerificationKey),
		Issuer:               c.Issuer,
		Audience:             c.Audience,
		SessionTokenTTL:      c.SessionTokenTTL,
		VerificationTokenTTL: c.VerificationTokenTTL,
	}, clock)
	if err != nil {
		return fmt.Errorf("token codec: %w", err)
	}
	hasher := cryptox.NewPasswordHasher(cryptox.DefaultArgon2Params)

	verification := services.NewVerificationWorkflow(db, rm, codec, mailer, c.VerificationBaseURL, c.VerificationTokenTTL, app.logger)
	identity := services.NewIdentityService(db, rm, services.IdentityDeps{
		Hasher:       hasher,
		Sessions:     codec,
		Verification: verification,
		Blobs:        uploader,
		UploadsDir:   uploadsDir,
		Clock:        clock,
		Logger:       app.logger,
	})
	reset := services.NewPasswordResetWorkflow(db, rm, hasher, mailer, clock, c.PasskeyTTL, app.logger)
	graph := services.NewSocialGraph(db, rm, app.logger)
	postService := services.NewPostService(db, rm, services.PostDeps{
		Blobs:      uploader,
		UploadsDir: uploadsDir,
		Clock:      clock,
		Logger:     app.logger,
	})

	handlers := httpapi.NewHandlers(httpapi.Deps{
		Identity:          identity,
		Verification:      verification,
		PasswordReset:     reset,
		Graph:             graph,
		Posts:             postService,
		Sessions:          codec,
		MaxAvatarSize:     c.MaxAvatarSize,
		MaxAttachmentSize: c.MaxAttachmentSize,
		Logger:            app.logger,
	})

	checks := map[string]gs.Pinger{"postgres": db}
	if app.mongo != nil {
		checks["mongo"] = mongoPinger{app.mongo}
	}

	app.http = httpapi.NewServer(c.HTTPAddr, app.logger, handlers.Routes())
	app.grpc = gs.NewGRPCServer(c.GRPCAddr, app.logger, checks)
	app.sweeper = services.NewSweeper(db, rm, clock, c.SweepInterval, c.PasskeyTTL, app.logger)
	return nil
}

// openMongo connects the document store that holds passkeys and posts.
func (app *App) openMongo(ctx context.Context) (*mongo.Database, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(app.config.MongoURL))
	if err != nil {
		return nil, fmt.Errorf("mongo init error: %w", err)
	}
	app.mongo = client
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongo ping error: %w", err)
	}

	db := client.Database(app.config.MongoDatabase)
	if err := passkeys.EnsureIndexes(ctx, db); err != nil {
		return nil, fmt.Errorf("mongo indexes: %w", err)
	}
	if err := posts.EnsureIndexes(ctx, db); err != nil {
		return nil, fmt.Errorf("mongo indexes: %w", err)
	}
	app.logger.Info(ctx, "passkeys and posts stored in MongoDB", "database", app.config.MongoDatabase)
	return db, nil
}

// mongoPinger adapts *mongo.Client to the gRPC readiness check.
type mongoPinger struct{ c *mongo.Client }

func (p mongoPinger) PingContext(ctx context.Context) error { return p.c.Ping(ctx, nil) }

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// start runs fn in the group; a failure cancels every other component.
func (app *App) start(ctx context.Context, wg *sync.WaitGroup, cancelFunc context.CancelFunc, name string, fn func(context.Context) error) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := fn(ctx); err != nil {
			app.logger.Error(ctx, name+" stopped with error", "error", err)
			cancelFunc()
		}
	}()
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	app.start(ctx, &wg, cancelFunc, "http server", app.http.Run)
	app.start(ctx, &wg, cancelFunc, "grpc server", app.grpc.Run)
	app.start(ctx, &wg, cancelFunc, "passkey sweeper", app.sweeper.Run)

	wg.Wait()

	app.close(context.Background())
	app.logger.Info(context.Background(), "App stopped")
}

func (app *App) close(ctx context.Context) {
	if app.mongo != nil {
		cctx, cancel := context.WithTimeout(ctx, httpapi.ShutdownTimeout)
		if err := app.mongo.Disconnect(cctx); err != nil {
			app.logger.Warn(ctx, "mongo disconnect failed", "error", err)
		}
		cancel()
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Warn(ctx, "db close failed", "error", err)
		}
	}
}
