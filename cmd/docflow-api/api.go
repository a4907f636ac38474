// Package main provides the docflow API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/calvere/docflow/pkg/escalation"
	"github.com/calvere/docflow/pkg/eventbus"
	"github.com/calvere/docflow/pkg/lock"
	"github.com/calvere/docflow/pkg/notifier"
	"github.com/calvere/docflow/pkg/persistence"
	"github.com/calvere/docflow/pkg/web"
	"github.com/calvere/docflow/pkg/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	notifier    notifier.Notifier
	tickLock    lock.TickLock
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	store persistence.Persistence,
	eventBus eventbus.EventBus,
	sender notifier.Notifier,
	tickLock lock.TickLock,
) *API {
	return &API{
		persistence: store,
		logger:      logger,
		eventBus:    eventBus,
		notifier:    sender,
		tickLock:    tickLock,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	instantiator := workflow.NewInstantiator(a.persistence, a.notifier, a.eventBus, a.logger)
	advancer := workflow.NewAdvancer(a.persistence, a.notifier, a.eventBus, a.logger)
	trigger := workflow.NewTriggerService(a.persistence, instantiator, advancer, a.logger)
	scheduler := workflow.NewScheduler(a.persistence, instantiator, advancer, a.logger)
	executor := escalation.NewExecutor(a.persistence.Steps(), a.persistence.Instances(), a.notifier, advancer, a.eventBus, a.logger)
	processor := escalation.NewProcessor(a.persistence, executor, a.eventBus, a.logger)
	ticker := workflow.NewTicker(a.tickLock, scheduler, processor, a.logger)

	handlers := web.NewAPIHandlers(a.persistence, trigger, advancer, ticker, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("docflow API")
	})

	handlers.RegisterRoutes(app)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}
