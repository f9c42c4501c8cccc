package main

import (
	"context"
	"errors"
	"flag"
	"os"

	"github.com/JonnyShabli/registry-mailer/config"
	"github.com/JonnyShabli/registry-mailer/internal/Service"
	"github.com/JonnyShabli/registry-mailer/internal/Service/fetcher"
	"github.com/JonnyShabli/registry-mailer/internal/Service/jobs"
	"github.com/JonnyShabli/registry-mailer/internal/Service/mailer"
	"github.com/JonnyShabli/registry-mailer/internal/Service/spreadsheet"
	"github.com/JonnyShabli/registry-mailer/internal/controller"
	"github.com/JonnyShabli/registry-mailer/internal/repository"
	pkghttp "github.com/JonnyShabli/registry-mailer/pkg/http"
	"github.com/JonnyShabli/registry-mailer/pkg/logster"
	"github.com/JonnyShabli/registry-mailer/pkg/sig"
	"github.com/JonnyShabli/registry-mailer/pkg/workerpool"
	"golang.org/x/sync/errgroup"
)

const localConfig = "config/config_local.yaml"

func main() {
	var appConfig config.Config
	var configFile string
	// читаем флаги запуска
	flag.StringVar(&configFile, "config", localConfig, "Path to the config file")
	flag.Parse()
	err := config.LoadConfig(configFile, &appConfig)
	if err != nil {
		panic(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Создаем логер
	logger := logster.New(os.Stdout, appConfig.Logger)
	defer func() { _ = logger.Sync() }()

	logger.Infof("starting application with config %+v", appConfig)

	// создаем errgroup
	g, ctx := errgroup.WithContext(ctx)

	// Gracefully shutdown
	g.Go(func() error {
		return sig.ListenSignal(ctx, logger, cancel)
	})

	// реестр задач
	repo := repository.NewStorage(logger)
	g.Go(func() error {
		return logster.LogIfError(logger, repo.RunSweeper(ctx, appConfig.Tasks), "Task sweeper")
	})

	// запуск фоновых задач
	var pool workerpool.WorkerPoolInterface
	if appConfig.Jobs.Pool.NumWorkers > 0 {
		wp := workerpool.NewWorkerPool(appConfig.Jobs.Pool, logger, "jobs")
		wp.Start(ctx)
		pool = wp
	} else {
		pool = workerpool.NewSpawner(logger)
	}

	workspace, err := spreadsheet.NewWorkspace(appConfig.Storage, logger)
	if err != nil {
		logger.WithError(err).Fatalf("workspace init failed")
	}

	runner := jobs.NewRunner(ctx, repo, pool, appConfig.Jobs.Runner, logger)
	service := Service.NewServiceObj(
		repo,
		runner,
		fetcher.NewFetcher(appConfig.Registry, logger),
		workspace,
		mailer.NewMailer(mailer.NewSMTPDialer(appConfig.Smtp), logger),
		logger,
	)
	handlerObj := controller.NewHandlers(service, logger)

	// создаем хэндлер
	handler := pkghttp.NewHandler("/", pkghttp.WithLogger(logger), pkghttp.DefaultTechOptions(), controller.WithApiHandler(handlerObj))
	logger.Infof("Create and configure handler")

	// запускаем http server
	g.Go(func() error {
		return logster.LogIfError(
			logger, pkghttp.RunServer(ctx, appConfig.HttpServer, logger, handler),
			"Api server",
		)
	})

	// ждем завершения
	err = g.Wait()
	if err != nil && !errors.Is(err, sig.ErrSignalReceived) {
		logger.WithError(err).Errorf("Exit reason")
	}

	// running jobs see the cancelled context and record their own failure
	pool.Wait()
	logger.Infof("all jobs finished")
}
