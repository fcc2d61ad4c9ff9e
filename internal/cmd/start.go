package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hoppxi/nightdisplay/internal/logging"
	"github.com/hoppxi/nightdisplay/internal/manager"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the tile daemon",
	Run: func(cmd *cobra.Command, args []string) {
		if conn, err := manager.ConnectIPC(); err == nil {
			conn.Close()
			fmt.Println("Daemon already running.")
			return
		}

		cm := manager.NewConfigManager(configPath)
		cfg, err := cm.Load()
		if err != nil {
			fmt.Println("Error:", err)
			os.Exit(1)
		}

		if err := logging.Initialize(cfg.LogLevel); err != nil {
			fmt.Println("Error:", err)
			os.Exit(1)
		}
		defer logging.Sync()
		log := logging.Named("daemon")

		if err := runDaemon(cm, cfg, log); err != nil {
			log.Error("Daemon failed", zap.Error(err))
			os.Exit(1)
		}
	},
}

func runDaemon(cm *manager.ConfigManager, cfg *manager.Config, log *zap.Logger) error {
	d, err := manager.NewDaemon(cfg, logging.GetLogger(), manager.Deps{})
	if err != nil {
		return err
	}
	defer d.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := manager.NewAppManager(log.Named("ipc"), d.Handle, stop)
	defer m.StopAll()

	go func() {
		if err := m.StartIPCServer(); err != nil {
			log.Error("IPC server failed", zap.Error(err))
			stop()
		}
	}()

	if addr := cfg.Metrics.Listen; addr != "" {
		m.StartWatcher("metrics", func(done <-chan struct{}) {
			serveCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			go func() {
				select {
				case <-done:
					cancel()
				case <-serveCtx.Done():
				}
			}()
			if err := d.Metrics().Serve(serveCtx, addr); err != nil {
				log.Warn("Metrics server failed", zap.String("addr", addr), zap.Error(err))
			}
		})
	}

	cm.Watch(func(c *manager.Config) {
		log.Info("Config changed, reloading")
		d.Reload(c)
	})

	log.Info("Daemon started", zap.Int("user", cfg.User))
	fmt.Println("Daemon started successfully. Press Ctrl+C to stop.")
	d.Run(ctx)

	log.Info("Shutting down")
	return nil
}
