package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/isafetyrobo/safety-agent/internal/envconf"
	"github.com/isafetyrobo/safety-agent/internal/logger"
	"github.com/isafetyrobo/safety-agent/pkg/logstore"
	"github.com/isafetyrobo/safety-agent/pkg/logstore/memorystore"
	"github.com/joeshaw/envdecode"
	flag "github.com/spf13/pflag"
)

type logWriter struct{}

func (lw *logWriter) Write(timestamp *time.Time, log string) error {
	fmt.Printf("%s: %s\n", timestamp.Format(time.RFC3339Nano), log)
	return nil
}

func main() {
	envDecoderConf := &envconf.EnvDecoderConf{}

	if err := envdecode.StrictDecode(envDecoderConf); err != nil {
		logger.NewErrorConsole(true).Fatal().Caller().Msgf("could not decode env conf: %v", err)
		os.Exit(1)
	}

	l := logger.NewConsole(envDecoderConf.Debug)

	var instanceID string
	var dir string
	var since string
	var limit uint32

	flag.StringVarP(&instanceID, "instance", "i", "", "vision instance whose detections to tail")
	flag.StringVar(&dir, "dir", envDecoderConf.LogStoreConf.LogStoreDir, "directory of the detection log store")
	flag.StringVar(&since, "since", "", "only replay detections newer than this RFC 3339 time")
	flag.Uint32Var(&limit, "limit", 20, "number of stored detections to replay before following")

	flag.Parse()

	if instanceID == "" {
		l.Fatal().Caller().Msg("an instance id must be provided")
	}

	var startTime time.Time

	if since != "" {
		var err error

		startTime, err = time.Parse(time.RFC3339, since)

		if err != nil {
			l.Fatal().Caller().Msg("valid RFC 3339 time must be provided")
		}
	}

	logStore, err := memorystore.New("detections", memorystore.Options{Dir: dir})

	if err != nil {
		l.Fatal().Caller().Msgf("file-based log store setup failed: %v", err)
	}

	stopChan := make(chan struct{})

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sig
		close(stopChan)
	}()

	l.Info().Caller().Msgf("tailing detections of instance %s", instanceID)

	if err := logStore.Tail(logstore.TailOptions{
		Labels: map[string]string{logstore.InstanceLabel: instanceID},
		Start:  startTime,
		Limit:  limit,
	}, &logWriter{}, stopChan); err != nil {
		l.Fatal().Caller().Msgf("could not tail detections: %v", err)
	}
}
