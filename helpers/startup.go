package helpers

import (
	"context"
	"os"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/ajvoice/aj-server/pkg/config"
	"github.com/ajvoice/aj-server/pkg/factory"
)

// ReadYamlConfigFile loads the config file into an AppConfig. Defaults
// and env overrides are applied later by config.New.
func ReadYamlConfigFile(filename string) (*config.AppConfig, error) {
	yamlFile, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	appCnf := new(config.AppConfig)
	if err = yaml.Unmarshal(yamlFile, appCnf); err != nil {
		return nil, err
	}

	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	appCnf.RootWorkingDir = wd

	return appCnf, nil
}

// PrepareServer connects the backing services (MySQL, Redis, NATS) and
// stores the handles on the config. The connections are independent, so
// they are brought up in parallel.
func PrepareServer(ctx context.Context, appCnf *config.AppConfig) error {
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return factory.NewDatabaseConnection(gCtx, appCnf)
	})
	g.Go(func() error {
		return factory.NewRedisConnection(gCtx, appCnf)
	})
	g.Go(func() error {
		return factory.NewNatsConnection(appCnf)
	})
	return g.Wait()
}
