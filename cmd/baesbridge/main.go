// Command baesbridge forwards gateway readings from MQTT to the BAES API.
//
// Each frame on the configured topic is decoded, posted to the API's
// status endpoint under the bridge account, and republished on the
// bridge's rejected topic when it cannot be decoded or the API refuses it.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/baes-monitor/baes-core/internal/bridge"
	"github.com/baes-monitor/baes-core/internal/infrastructure/config"
	"github.com/baes-monitor/baes-core/internal/infrastructure/logging"
	"github.com/baes-monitor/baes-core/internal/infrastructure/mqtt"
)

var version = "dev"

const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var configPath string
	root := &cobra.Command{
		Use:           "baesbridge",
		Short:         "Forward BAES gateway frames from MQTT to the API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	defaultPath := defaultConfigPath
	if path := os.Getenv(config.EnvPrefix + "CONFIG"); path != "" {
		defaultPath = path
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", defaultPath, "path to the YAML configuration")

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log := logging.New(cfg.Logging, version).With("component", "bridge")

	apiClient := bridge.NewClient(cfg.Bridge)
	if err := apiClient.Login(ctx); err != nil {
		return fmt.Errorf("logging in to API: %w", err)
	}
	log.Info("API session opened", "url", cfg.Bridge.APIBaseURL, "login", cfg.Bridge.Login)

	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	mqttClient.SetLogger(log)
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	fwd := bridge.New(apiClient, mqttClient, cfg.MQTT.Broker.ClientID)
	fwd.SetLogger(log)
	if err := mqttClient.Subscribe(cfg.MQTT.Topic, byte(cfg.MQTT.QoS), fwd.Handle); err != nil {
		return fmt.Errorf("subscribing to %s: %w", cfg.MQTT.Topic, err)
	}
	log.Info("forwarding readings", "topic", cfg.MQTT.Topic)

	<-ctx.Done()
	log.Info("shutdown signal received")
	return nil
}
