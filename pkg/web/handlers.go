package web

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/graviton-studio/logos/pkg/models"
	"github.com/graviton-studio/logos/pkg/persistence"
)

// AgentSource resolves agent definitions for incoming triggers.
type AgentSource interface {
	AgentByID(ctx context.Context, agentID string) (*models.Agent, error)
}

// Launcher dispatches one workflow run. The API calls it on a background
// goroutine, so implementations own their run lifetime.
type Launcher func(ctx context.Context, agent *models.Agent, initialContext map[string]any)

type API struct {
	source        AgentSource
	launch        Launcher
	webhookSecret string
	validate      *validator.Validate
	logger        *slog.Logger
}

func NewAPI(source AgentSource, launch Launcher, webhookSecret string, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}

	return &API{
		source:        source,
		launch:        launch,
		webhookSecret: webhookSecret,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		logger:        logger.With("module", "web"),
	}
}

func (a *API) App() *fiber.App {
	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Logos Agent API")
	})

	app.Post("/trigger", a.Trigger)

	return app
}

func (a *API) Start(port int) error {
	return a.App().Listen(":" + strconv.Itoa(port))
}

// Trigger verifies the webhook signature against the raw body, authorizes
// the requesting user, and dispatches the run in the background.
func (a *API) Trigger(c fiber.Ctx) error {
	payload := c.Body()

	if a.webhookSecret != "" {
		signature := c.Get("X-Webhook-Signature")
		if signature == "" {
			a.logger.Error("Missing webhook signature header")

			return unauthorized(c, "Missing webhook signature")
		}

		if !verifySignature(payload, signature, a.webhookSecret) {
			a.logger.Error("Invalid webhook signature")

			return unauthorized(c, "Invalid webhook signature")
		}
	} else {
		a.logger.Warn("No webhook secret configured, skipping signature verification")
	}

	var req TriggerRequest

	err := json.Unmarshal(payload, &req)
	if err != nil {
		return badRequest(c, "Invalid JSON payload")
	}

	err = a.validate.Struct(&req)
	if err != nil {
		return badRequest(c, err.Error())
	}

	agent, err := a.source.AgentByID(c.Context(), req.AgentID)
	if err != nil {
		if persistence.IsAgentNotFound(err) {
			return notFound(c, "agent not found")
		}

		return internalError(c, err)
	}

	if agent.UserID != req.UserID && !agent.IsPublic {
		a.logger.Error("User not authorized for agent", "agent_id", req.AgentID, "user_id", req.UserID)

		return forbidden(c, "Not authorized to trigger this agent")
	}

	a.logger.Info("Authorized trigger request",
		"agent_id", agent.ID, "agent_name", agent.Name, "user_id", req.UserID)

	go a.launch(context.WithoutCancel(c.Context()), agent, req.Context)

	return c.JSON(TriggerResponse{
		Message:   "Agent workflow triggered successfully in the background.",
		AgentID:   agent.ID,
		AgentName: agent.Name,
	})
}

// verifySignature checks an HMAC-SHA256 hex signature over the raw payload.
// A "sha256=" prefix on the header value is tolerated.
func verifySignature(payload []byte, signature, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}

	signature = strings.TrimPrefix(signature, "sha256=")

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(signature), []byte(expected))
}
