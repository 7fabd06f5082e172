package main

import (
	"context"
	"fmt"
	"log"
	"os"

	echoapi "github.com/credikids/credikids/apps/api/echo"
	"github.com/credikids/credikids/core"
	"github.com/credikids/credikids/core/credit"
	"github.com/credikids/credikids/core/reward"
	"github.com/credikids/credikids/core/task"
	"github.com/credikids/credikids/core/user"
	logsvc "github.com/credikids/credikids/services/logger"
	"github.com/credikids/credikids/storage/database"
	sqlxrepos "github.com/credikids/credikids/storage/database/sqlx"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf, err := core.NewConfig()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			logger.Error("closing database", err)
		}
	}()

	userRepo := sqlxrepos.NewUserRepository(db)
	usrSvc := user.NewService(db, userRepo)
	taskSvc := task.NewService(db, sqlxrepos.NewTaskRepository(db), userRepo)
	rewardSvc := reward.NewService(db, sqlxrepos.NewRewardRepository(db), userRepo)
	creditSvc := credit.NewService(db, sqlxrepos.NewCreditRepository(db), userRepo)

	// =========================================================================
	// Start API Service

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:      conf,
			Logger:    logger,
			UserSvc:   usrSvc,
			TaskSvc:   taskSvc,
			RewardSvc: rewardSvc,
			CreditSvc: creditSvc,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpDB(conf *core.Config) (*database.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}
