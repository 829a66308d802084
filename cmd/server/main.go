package main

import (
	"context"
	"log"
	"os"
	"runtime/debug"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sevakendra/beneficiary-portal/modules"
	"github.com/sevakendra/beneficiary-portal/pkg/application"
	"github.com/sevakendra/beneficiary-portal/pkg/configuration"
	"github.com/sevakendra/beneficiary-portal/pkg/eventbus"
	"github.com/sevakendra/beneficiary-portal/pkg/middleware"
	"github.com/sevakendra/beneficiary-portal/pkg/server"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			log.Println(r)
			debug.PrintStack()
			os.Exit(1)
		}
	}()

	conf := configuration.Use()
	logger := conf.Logger()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	pool, err := pgxpool.New(ctx, conf.Database.ConnectionString())
	if err != nil {
		panic(err)
	}
	defer pool.Close()

	app := application.New(&application.ApplicationOptions{
		Pool:     pool,
		EventBus: eventbus.NewEventPublisher(logger),
		Logger:   logger,
	})
	if err := modules.Load(app, modules.BuiltInModules...); err != nil {
		log.Fatalf("failed to load modules: %v", err)
	}

	if conf.MigrationsEnabled {
		if err := app.Migrations().Run(context.Background()); err != nil {
			log.Fatalf("failed to apply migrations: %v", err)
		}
	}

	app.RegisterMiddleware(
		middleware.RequestLogger(logger),
		middleware.ProvidePool(pool),
		middleware.ProvideActor(),
	)

	logger.WithField("address", conf.SocketAddress).Info("starting server")
	if err := server.NewHTTPServer(app).Start(conf.SocketAddress); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
