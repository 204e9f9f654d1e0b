package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"transformer-losses/config"
	"transformer-losses/internal/api"
	"transformer-losses/internal/collector"
	"transformer-losses/internal/kafka"
	"transformer-losses/internal/meter"
	"transformer-losses/internal/modbus"
	"transformer-losses/internal/mqtt"
	"transformer-losses/internal/report"
	"transformer-losses/internal/storage"
	"transformer-losses/internal/weather"

	"github.com/spf13/cobra"
)

var (
	configFile string
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "transformer-losses",
		Short: "Transformer power loss calculator",
		Long:  "Compute iron, copper, stray and dielectric losses of a power transformer, from the command line or live from a Modbus TCP meter",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				log.SetFlags(log.LstdFlags | log.Lshortfile)
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(calcCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(readCmd())
	rootCmd.AddCommand(testCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newMeter(cfg *config.Config) (*meter.Meter, error) {
	kind, err := modbus.ParseRegisterKind(cfg.Meter.RegisterKind)
	if err != nil {
		return nil, err
	}
	client := modbus.NewClient(
		cfg.Meter.IP,
		cfg.Meter.Port,
		cfg.Meter.SlaveID,
		cfg.Meter.Timeout,
		kind,
	)
	return meter.NewMeter(client), nil
}

func newWeather(cfg *config.Config, source collector.TemperatureSource) (weather.Provider, error) {
	if source != collector.TemperatureWeather {
		return nil, nil
	}
	return weather.New(weather.Options{
		Provider:  cfg.Weather.Provider,
		APIKey:    cfg.Weather.APIKey,
		City:      cfg.Weather.City,
		Country:   cfg.Weather.Country,
		Latitude:  cfg.Weather.Latitude,
		Longitude: cfg.Weather.Longitude,
	})
}

// newCollector wires the meter and temperature source. Store and sinks are
// optional.
func newCollector(cfg *config.Config, db collector.Store, sinks []collector.Sink) (*collector.Collector, error) {
	m, err := newMeter(cfg)
	if err != nil {
		return nil, err
	}

	tempSource, err := collector.ParseTemperatureSource(cfg.Transformer.TemperatureSource)
	if err != nil {
		return nil, err
	}

	provider, err := newWeather(cfg, tempSource)
	if err != nil {
		return nil, err
	}

	return collector.NewCollector(collector.CollectorConfig{
		Source:            m,
		Database:          db,
		Sinks:             sinks,
		Weather:           provider,
		Nameplate:         cfg.Transformer.Parameters(),
		TemperatureSource: tempSource,
		TemperatureRise:   cfg.Transformer.TemperatureRise,
		Interval:          cfg.Collector.Interval,
		Enabled:           cfg.Collector.Enabled,
	}), nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the monitoring service",
		Long:  "Start the collector, API server, MQTT and Kafka publishers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			db, err := storage.NewDatabase(cfg.Database.Path)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			log.Printf("Database opened at %s", cfg.Database.Path)

			var sinks []collector.Sink

			publisher, err := mqtt.NewPublisher(mqtt.PublisherConfig{
				Broker:      cfg.MQTT.Broker,
				ClientID:    cfg.MQTT.ClientID,
				Username:    cfg.MQTT.Username,
				Password:    cfg.MQTT.Password,
				TopicPrefix: cfg.MQTT.TopicPrefix,
				Device:      cfg.Transformer.Name,
				Enabled:     cfg.MQTT.Enabled,
			})
			if err != nil {
				log.Printf("Warning: MQTT connection failed: %v", err)
			} else if cfg.MQTT.Enabled {
				log.Printf("MQTT connected to %s", cfg.MQTT.Broker)
				if err := publisher.PublishHomeAssistantDiscovery(); err != nil {
					log.Printf("Warning: Home Assistant discovery failed: %v", err)
				}
				sinks = append(sinks, publisher)
			}

			stream, err := kafka.NewPublisher(kafka.PublisherConfig{
				Enabled: cfg.Kafka.Enabled,
				Brokers: cfg.Kafka.Brokers,
				Topic:   cfg.Kafka.Topic,
				Device:  cfg.Transformer.Name,
				Acks:    cfg.Kafka.Acks,
			})
			if err != nil {
				log.Printf("Warning: Kafka publisher disabled: %v", err)
			} else if cfg.Kafka.Enabled {
				log.Printf("Kafka publishing to %s on %v", cfg.Kafka.Topic, cfg.Kafka.Brokers)
				sinks = append(sinks, stream)
			}

			coll, err := newCollector(cfg, db, sinks)
			if err != nil {
				db.Close()
				return err
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

			go func() {
				if err := coll.Start(ctx); err != nil {
					log.Printf("Collector error: %v", err)
				}
			}()

			if cfg.Collector.Retention > 0 {
				go cleanupLoop(ctx, db, cfg.Collector.Retention)
			}

			var server *api.Server
			if cfg.API.Enabled {
				server = api.NewServer(api.ServerConfig{
					Port:       cfg.API.Port,
					Collector:  coll,
					Database:   db,
					Config:     cfg,
					ConfigPath: configFile,
					NewWeather: func() (weather.Provider, error) {
						return newWeather(cfg, collector.TemperatureWeather)
					},
				})

				go func() {
					if err := server.Start(); err != nil {
						log.Printf("API server error: %v", err)
					}
				}()
			}

			log.Println("Transformer losses service started. Press Ctrl+C to stop.")

			<-sigChan
			log.Println("Shutting down...")
			cancel()

			if server != nil {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				if err := server.Stop(shutdownCtx); err != nil {
					log.Printf("API server shutdown error: %v", err)
				}
				shutdownCancel()
			}
			coll.Stop()

			return nil
		},
	}
}

// cleanupLoop drops records older than retention once an hour.
func cleanupLoop(ctx context.Context, db *storage.Database, retention time.Duration) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		n, err := db.CleanOldRecords(retention)
		if err != nil {
			log.Printf("Error cleaning old records: %v", err)
		} else if n > 0 {
			log.Printf("Removed %d records older than %s", n, retention)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func readCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "read",
		Short: "Read the meter once and compute the losses",
		Long:  "Connect to the transformer meter, read one operating point and print the loss breakdown",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			coll, err := newCollector(cfg, nil, nil)
			if err != nil {
				return err
			}
			defer coll.Stop()

			snap, err := coll.CollectOnce(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to read data: %w", err)
			}

			switch output {
			case "json":
				out, _ := json.MarshalIndent(snap, "", "  ")
				fmt.Println(string(out))
				return nil
			case "table":
				return report.WriteTable(cmd.OutOrStdout(), snap.Report)
			}
			return fmt.Errorf("unknown output format %q", output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "json", "output format: json or table")
	return cmd
}

func testCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Test connection to the meter",
		Long:  "Test the Modbus TCP connection to the transformer meter",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			m, err := newMeter(cfg)
			if err != nil {
				return err
			}
			defer m.Close()

			fmt.Printf("Testing connection to %s...\n", m.Address())

			if err := m.TestConnection(); err != nil {
				fmt.Printf("Connection FAILED: %v\n", err)
				return err
			}

			fmt.Println("Connection SUCCESS!")

			data, err := m.ReadAllData()
			if err != nil {
				fmt.Printf("Warning: Could not read data: %v\n", err)
				return nil
			}

			params := data.Apply(cfg.Transformer.Parameters())
			fmt.Printf("\nMeter Values:\n")
			fmt.Printf("  Primary:       %.1f V\n", data.PrimaryVoltage)
			fmt.Printf("  Secondary:     %.1f V\n", data.SecondaryVoltage)
			fmt.Printf("  Frequency:     %.2f Hz\n", data.Frequency)
			fmt.Printf("  Current:       %.2f A\n", data.PrimaryCurrent)
			fmt.Printf("  Active Power:  %d W\n", data.ActivePower)
			fmt.Printf("  Load:          %.1f %%\n", params.LoadPercent)
			fmt.Printf("  Winding Temp:  %.1f °C\n", data.WindingTemp)
			fmt.Printf("  Status:        %s\n", data.StatusString)

			return nil
		},
	}
}
