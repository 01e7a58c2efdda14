package factory

import (
	"context"

	"github.com/ajvoice/aj-server/pkg/config"
	"github.com/ajvoice/aj-server/pkg/controllers"
	"github.com/ajvoice/aj-server/pkg/models"
	assistantservice "github.com/ajvoice/aj-server/pkg/services/assistant"
)

// ApplicationControllers holds all the controllers.
type ApplicationControllers struct {
	AuthController         *controllers.AuthController
	RoomController         *controllers.RoomController
	AgentController        *controllers.AgentController
	ConversationController *controllers.ConversationController
	ArtifactController     *controllers.ArtifactController
	WebhookController      *controllers.WebhookController
	HealthCheckController  *controllers.HealthCheckController
	TurnController         *controllers.TurnController
}

// Application is the root struct holding all dependencies.
type Application struct {
	Controllers      *ApplicationControllers
	AppConfig        *config.AppConfig
	Ctx              context.Context
	AssistantService *assistantservice.AssistantService
	janitorModel     *models.JanitorModel
}

// Boot starts the background machinery: the cluster agent task
// subscription and the janitor loop.
func (a *Application) Boot() {
	a.AssistantService.StartSubscription()
	go a.janitorModel.StartJanitor()
}

func (a *Application) Shutdown() {
	a.janitorModel.Stop()
	a.AssistantService.Shutdown()
}
