package main

import (
	"context"
	"log"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/backend-tour/internal/common"
	"github.com/noah-isme/backend-tour/internal/config"
	"github.com/noah-isme/backend-tour/internal/notify"
	"github.com/noah-isme/backend-tour/internal/obs"
	"github.com/noah-isme/backend-tour/internal/resilience"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("component", "worker").Logger()

	redisConn, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}

	var mail common.EmailSender = common.NopEmailSender{}
	if !cfg.EmailEnabled {
		logger.Info().Msg("email delivery disabled; notifications are logged only")
	}

	breaker := resilience.NewBreaker(
		cfg.BreakerMinRequests,
		cfg.BreakerFailureRatio,
		cfg.BreakerOpenFor,
	).WithLogger(logger)

	deliverer := notify.Deliverer{
		Mail:         mail,
		AdminAddress: cfg.AdminEmail,
		Breaker:      breaker,
		Logger:       logger,
	}

	srv := asynq.NewServer(redisConn, asynq.Config{
		Concurrency: 5,
		Queues:      map[string]int{"default": 1},
		ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, task *asynq.Task, err error) {
			logger.Warn().Err(err).Str("task", task.Type()).Msg("task failed")
		}),
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(notify.TypeBookingNotify, deliverer.HandleBookingNotify)

	logger.Info().Msg("worker starting")
	if err := srv.Run(mux); err != nil {
		logger.Fatal().Err(err).Msg("worker stopped with error")
	}
}
