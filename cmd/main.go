package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"gitlab.com/zanolabs/escrowd/api"
	"gitlab.com/zanolabs/escrowd/backend"
	"gitlab.com/zanolabs/escrowd/config"
	"gitlab.com/zanolabs/escrowd/contractmanager"
	"gitlab.com/zanolabs/escrowd/contracts"
	"gitlab.com/zanolabs/escrowd/lib"
	"gitlab.com/zanolabs/escrowd/session"
	"gitlab.com/zanolabs/escrowd/settings"
	"gitlab.com/zanolabs/escrowd/wallet"
)

func main() {
	_ = godotenv.Load(".env")

	var cfg config.Config
	err := config.LoadConfig(&cfg, &os.Args)
	if err != nil {
		panic(err)
	}

	isProd := cfg.Environment == "production"
	logFile := ""
	if cfg.Log.LogToFile {
		logFile = "escrowd.log"
	}

	log, err := lib.NewLogger(cfg.Log.LevelApp, cfg.Log.Color, isProd, false, logFile)
	if err != nil {
		panic(err)
	}

	engineLog, err := lib.NewLogger(cfg.Log.LevelEngine, cfg.Log.Color, isProd, false, logFile)
	if err != nil {
		panic(err)
	}

	relayLog, err := lib.NewLogger(cfg.Log.LevelRelay, cfg.Log.Color, isProd, false, logFile)
	if err != nil {
		panic(err)
	}

	defer func() {
		_ = log.Sync()
	}()

	log.Infof("starting escrowd, config: %+v", cfg.GetSanitized())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-shutdownChan
		log.Warnf("Received signal: %s", s)
		cancel()

		s = <-shutdownChan
		log.Warnf("Received signal: %s. Forcing exit...", s)
		os.Exit(1)
	}()

	store, err := settings.Open(cfg.Settings.Path)
	if err != nil {
		log.Errorf("cannot open settings storage %s: %s", cfg.Settings.Path, err)
		panic(err)
	}
	defer func() {
		_ = store.Close()
	}()

	viewed, notViewed, err := store.LoadMarks()
	if err != nil {
		log.Errorf("cannot restore contract marks: %s", err)
		panic(err)
	}
	log.Infof("restored %d viewed / %d dismissed contract marks", len(viewed), len(notViewed))

	ledger := contracts.NewLedger(viewed, notViewed)
	ledger.OnChange(func() {
		v, nv := ledger.Snapshot()
		if err := store.SaveMarks(v, nv); err != nil {
			log.Errorf("cannot persist contract marks: %s", err)
		}
	})

	sess := session.New()
	wallets := wallet.NewRegistry()
	relay := backend.NewRelay(cfg.Backend.Address, cfg.Backend.CallTimeout, cfg.Backend.ReconnectDelay, relayLog.Named("RELAY"))

	engine := contractmanager.NewEngine(
		wallets,
		sess,
		ledger,
		relay,
		cfg.Contracts.ConfirmationInterval,
		engineLog.Named("ENGINE"),
	)

	gin.SetMode(gin.ReleaseMode)
	r := api.NewApiController(engine, sess, relay, log.Named("API"))

	confirmTask := lib.NewTaskFunc(engine.RunConfirmationTicker, "confirmations")
	confirmTask.Start(ctx)
	defer func() {
		<-confirmTask.Stop()
	}()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return engine.Run(gCtx)
	})

	g.Go(func() error {
		return relay.Run(gCtx)
	})

	g.Go(func() error {
		log.Infof("http server is listening: %s", cfg.Web.Address)
		return r.Run(cfg.Web.Address)
	})

	err = g.Wait()
	log.Infof("App exited due to %s", err)
}
