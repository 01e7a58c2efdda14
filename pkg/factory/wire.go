//go:build wireinject
// +build wireinject

package factory

import (
	"context"

	"github.com/google/wire"

	"github.com/ajvoice/aj-server/pkg/config"
	"github.com/ajvoice/aj-server/pkg/controllers"
	"github.com/ajvoice/aj-server/pkg/helpers"
	"github.com/ajvoice/aj-server/pkg/models"
	assistantservice "github.com/ajvoice/aj-server/pkg/services/assistant"
	dbservice "github.com/ajvoice/aj-server/pkg/services/db"
	livekitservice "github.com/ajvoice/aj-server/pkg/services/livekit"
	natsservice "github.com/ajvoice/aj-server/pkg/services/nats"
	redisservice "github.com/ajvoice/aj-server/pkg/services/redis"
	turnservice "github.com/ajvoice/aj-server/pkg/services/turn"
)

// build the dependency set for services
var serviceSet = wire.NewSet(
	dbservice.New,
	redisservice.New,
	natsservice.New,
	livekitservice.New,
	assistantservice.New,
	turnservice.New,
)

// build the dependency set for helpers
var helperSet = wire.NewSet(
	helpers.GetWebhookNotifier,
)

// build the dependency set for models
var modelSet = wire.NewSet(
	models.NewAuthModel,
	models.NewAuthTokenModel,
	models.NewAgentModel,
	models.NewRoomModel,
	models.NewArtifactModel,
	models.NewConversationModel,
	models.NewWebhookModel,
	models.NewJanitorModel,
)

// build the dependency set for controllers
var controllerSet = wire.NewSet(
	controllers.NewAuthController,
	controllers.NewRoomController,
	controllers.NewAgentController,
	controllers.NewConversationController,
	controllers.NewArtifactController,
	controllers.NewWebhookController,
	controllers.NewHealthCheckController,
	controllers.NewTurnController,
)

// NewAppFactory is the injector function that wire will implement.
func NewAppFactory(ctx context.Context, appConfig *config.AppConfig) (*Application, error) {
	wire.Build(
		serviceSet,
		helperSet,
		modelSet,
		controllerSet,
		// Provide the whole AppConfig, and also specific fields needed by constructors.
		wire.FieldsOf(new(*config.AppConfig), "DB", "RDS", "Logger"),

		wire.Struct(new(ApplicationControllers), "*"),
		wire.Struct(new(Application), "*"),
	)
	return nil, nil // This return value is ignored.
}
