// Command openkit-agent is a minimal demonstration host for the OpenKit
// agent core: it starts an Agent, reports a handful of sample events through
// the fluent facade, and shuts down cleanly on SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openkit-go/openkit/internal/diagnostics"
	"github.com/openkit-go/openkit/internal/log"
	"github.com/openkit-go/openkit/internal/openkit"
	"github.com/openkit-go/openkit/internal/telemetry"
)

func main() {
	endpoint := flag.String("endpoint", "", "beacon ingest endpoint URL")
	appID := flag.String("app-id", "", "application id")
	configPath := flag.String("config", "", "optional YAML identity config file")
	diagAddr := flag.String("diagnostics-addr", "", "optional diagnostics HTTP listen address, e.g. :9090")
	otlpEndpoint := flag.String("otlp-endpoint", "", "optional OTLP/HTTP collector endpoint for the agent's own traces")
	logLevel := flag.String("log-level", "info", "log level")
	flag.Parse()

	log.Configure(log.Config{Level: *logLevel, Agent: "openkit-agent"})
	logger := log.WithComponent("main")

	if *endpoint == "" || *appID == "" {
		logger.Error().Msg("-endpoint and -app-id are required")
		os.Exit(2)
	}

	agent, err := openkit.New(openkit.AgentConfig{
		Endpoint:       *endpoint,
		ApplicationID:  *appID,
		FileConfigPath: *configPath,
		Diagnostics:    diagnostics.Config{Addr: *diagAddr},
		Telemetry:      telemetry.Config{OTLPEndpoint: *otlpEndpoint, ServiceName: *appID},
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to start agent")
		os.Exit(1)
	}

	initCtx, cancelInit := context.WithTimeout(context.Background(), 30*time.Second)
	if err := agent.WaitForInit(initCtx); err != nil {
		logger.Warn().Err(err).Msg("agent init did not complete before timeout, continuing")
	}
	cancelInit()

	session := agent.CreateSession("")
	session.IdentifyUser("demo-user")
	action := session.EnterAction("startup")
	action.ReportEvent("agent-started")
	action.ReportValueInt("pid", int32(os.Getpid()))
	action.LeaveAction()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info().Msg("shutdown signal received")
	session.End()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := agent.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown did not complete cleanly")
		os.Exit(1)
	}
}
