package routers

import (
	"io"
	"runtime"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	rr "github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/template/html/v2"

	"github.com/ajvoice/aj-server/pkg/config"
	"github.com/ajvoice/aj-server/pkg/factory"
	"github.com/ajvoice/aj-server/version"
)

// router is a struct to hold the dependencies for setting up routes,
// allowing us to break down the monolithic New() function into smaller,
// more manageable methods.
type router struct {
	app  *fiber.App
	ctrl *factory.ApplicationControllers
}

func New(appConfig *config.AppConfig, ctrl *factory.ApplicationControllers) *fiber.App {
	templateEngine := html.New(appConfig.Client.Path, ".html")

	if appConfig.Client.Debug {
		templateEngine.Reload(true)
		templateEngine.Debug(true)
	}

	cnf := fiber.Config{
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,
		Views:       templateEngine,
		AppName:     "aj-server version: " + version.Version + " runtime: " + runtime.Version(),
	}

	if appConfig.Client.ProxyHeader != "" {
		cnf.ProxyHeader = appConfig.Client.ProxyHeader
	}

	app := fiber.New(cnf)

	app.Use(logger.New(logger.Config{
		Done: func(c *fiber.Ctx, logString []byte) {
			appConfig.Logger.Debugln(string(logString))
		},
		Format: "${status} | ${latency} | ${ip} | ${method} | ${path} | ${error}",
		Output: io.Discard,
	}))

	if appConfig.Client.PrometheusConf.Enable {
		prometheus := fiberprometheus.New("aj_server")
		prometheus.RegisterAt(app, appConfig.Client.PrometheusConf.MetricsPath)
		app.Use(prometheus.Middleware)
	}

	app.Use(rr.New())
	app.Use(cors.New(cors.Config{
		AllowMethods: "POST,GET,OPTIONS",
	}))
	app.Static("/assets", appConfig.Client.Path+"/assets")

	r := &router{
		app:  app,
		ctrl: ctrl,
	}

	r.registerBaseRoutes()
	r.registerAuthRoutes()
	r.registerAPIRoutes()

	// This MUST be the last middleware to be registered.
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).SendString("not found")
	})

	return app
}

func (r *router) registerBaseRoutes() {
	r.app.Get("/", func(c *fiber.Ctx) error {
		return c.Render("index", fiber.Map{
			"version": version.Version,
		})
	})
	r.app.Get("/healthz", r.ctrl.HealthCheckController.HandleHealthCheck)
	r.app.Get("/download/artifact/:token", r.ctrl.ArtifactController.HandleDownloadArtifact)
	r.app.Post("/webhook/livekit", r.ctrl.WebhookController.HandleWebhook)
}

func (r *router) registerAuthRoutes() {
	auth := r.app.Group("/auth", r.ctrl.AuthController.HandleAuthHeaderCheck)

	room := auth.Group("/room")
	room.Post("/create", r.ctrl.RoomController.HandleRoomCreate)
	room.Post("/end", r.ctrl.RoomController.HandleEndRoom)
	room.Post("/info", r.ctrl.RoomController.HandleRoomInfo)
	room.Post("/active-list", r.ctrl.RoomController.HandleActiveRoomList)

	token := auth.Group("/token")
	token.Post("/generate", r.ctrl.AuthController.HandleGenerateToken)
	token.Post("/renew", r.ctrl.AuthController.HandleRenewToken)

	agent := auth.Group("/agent")
	agent.Post("/start", r.ctrl.AgentController.HandleAgentStart)
	agent.Post("/end", r.ctrl.AgentController.HandleAgentEnd)
	agent.Post("/status", r.ctrl.AgentController.HandleAgentStatus)
	agent.Post("/sessions", r.ctrl.AgentController.HandleAgentSessions)

	conversation := auth.Group("/conversation")
	conversation.Post("/history", r.ctrl.ConversationController.HandleConversationHistory)
	conversation.Post("/summary", r.ctrl.ConversationController.HandleConversationSummary)

	auth.Post("/assistant/chat", r.ctrl.ConversationController.HandleAssistantChat)

	artifact := auth.Group("/artifact")
	artifact.Post("/list", r.ctrl.ArtifactController.HandleListArtifacts)
	artifact.Post("/delete", r.ctrl.ArtifactController.HandleDeleteArtifact)
	artifact.Post("/download-token", r.ctrl.ArtifactController.HandleGetDownloadToken)

	auth.Get("/turn/credentials", r.ctrl.TurnController.HandleGetCredentials)
}

func (r *router) registerAPIRoutes() {
	api := r.app.Group("/api", r.ctrl.AuthController.HandleVerifyHeaderToken)

	api.Post("/assistant/chat", r.ctrl.ConversationController.HandleAssistantChatForAPI)
	api.Post("/conversation/history", r.ctrl.ConversationController.HandleConversationHistoryForAPI)
	api.Get("/agent/status", r.ctrl.AgentController.HandleAgentStatusForAPI)
}
