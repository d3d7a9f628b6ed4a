package config

import (
	"context"
	"os"

	"github.com/isafetyrobo/safety-agent/internal/envconf"
	"github.com/isafetyrobo/safety-agent/internal/logger"
	"github.com/isafetyrobo/safety-agent/internal/repository"
	"github.com/isafetyrobo/safety-agent/pkg/autoscroll"
	"github.com/isafetyrobo/safety-agent/pkg/feed"
	"github.com/isafetyrobo/safety-agent/pkg/instance"
	"github.com/isafetyrobo/safety-agent/pkg/logstore"
	"github.com/isafetyrobo/safety-agent/pkg/metrics"
	"github.com/isafetyrobo/safety-agent/pkg/vision"
)

// InstanceLister lists the remote vision instances of several accounts.
type InstanceLister interface {
	ListAllInstances(ctx context.Context, accountIDs []string) ([]vision.Instance, error)
}

type Config struct {
	// Logger for logging
	Logger *logger.Logger

	// Context bounds background work that outlives a request, such as the
	// feed poller started by POST /feed/start
	Context context.Context

	Repository *repository.Repository

	Feed *feed.Feed

	Instances *instance.Manager

	Vision InstanceLister

	AccountIDs []string

	LogStore logstore.LogStore

	Metrics *metrics.Metrics

	LiveBoard *autoscroll.Viewport
}

func GetConfig(envConf *envconf.EnvDecoderConf, repo *repository.Repository, ls logstore.LogStore) (*Config, error) {
	res := &Config{
		Logger:     logger.New(envConf.Debug, os.Stdout),
		Context:    context.Background(),
		Repository: repo,
		AccountIDs: envConf.VisionConf.AccountIDs,
		LogStore:   ls,
		LiveBoard:  autoscroll.New(autoscroll.Options{}),
	}

	return res, nil
}
