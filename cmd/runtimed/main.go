package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/InferOS/runtime/internal/hal/cpu"
	"github.com/GriffinCanCode/InferOS/runtime/internal/infrastructure/config"
	"github.com/GriffinCanCode/InferOS/runtime/internal/infrastructure/logging"
	"github.com/GriffinCanCode/InferOS/runtime/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/InferOS/runtime/internal/infrastructure/server"
	"github.com/GriffinCanCode/InferOS/runtime/internal/runtime"
)

func main() {
	cfg := config.LoadOrDefault()

	var logger *logging.Logger
	if cfg.Logging.Development {
		logger = logging.NewDevelopment()
	} else {
		logger = logging.NewDefault()
	}
	defer logger.Sync()

	metrics := monitoring.NewMetrics()

	sys, err := runtime.New(logger)
	if err != nil {
		log.Fatalf("Failed to create system: %v", err)
	}
	sys.WithMetrics(metrics)

	logger.Info("system constructed",
		zap.String("system", sys.ID()),
		zap.Int("nodes", cfg.Topology.Nodes),
		zap.Int("cpu_devices", cfg.Topology.CPUDevices),
	)

	// Configuration phase: topology, drivers, devices.
	drv := cpu.New(cfg.Topology.CPUDevices)
	if err := sys.InitializeNodes(cfg.Topology.Nodes); err != nil {
		log.Fatalf("Failed to initialize nodes: %v", err)
	}
	if err := sys.InitializeHALDriver(cfg.Topology.CPUMoniker, drv); err != nil {
		log.Fatalf("Failed to register cpu driver: %v", err)
	}
	for _, dev := range drv.Devices() {
		if err := sys.InitializeHALDevice(dev); err != nil {
			log.Fatalf("Failed to register device: %v", err)
		}
	}
	if err := sys.FinishInitialization(); err != nil {
		log.Fatalf("Failed to finish initialization: %v", err)
	}

	// Operation phase: default worker, queue, and scope.
	worker, err := sys.CreateWorker(runtime.WorkerOptions{
		Name:        cfg.Workers.DefaultName,
		OwnedThread: true,
	})
	if err != nil {
		log.Fatalf("Failed to create worker: %v", err)
	}
	if _, err := sys.CreateQueue(runtime.QueueOptions{
		Name:  "default",
		Depth: cfg.Workers.QueueDepth,
	}); err != nil {
		log.Fatalf("Failed to create queue: %v", err)
	}
	scope := sys.CreateScope(worker, sys.Devices())
	logger.Info("default scope ready",
		zap.String("scope", scope.ID().String()),
		zap.String("worker", worker.Name()),
		zap.Int("devices", len(scope.Devices())),
	)

	// Diagnostics server.
	errChan := make(chan error, 1)
	if cfg.Diag.Enabled {
		diag := server.New(cfg, sys, logger, metrics)
		go func() {
			if err := diag.Run(); err != nil {
				errChan <- err
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("shutting down")
		sys.Shutdown()
	case err := <-errChan:
		logger.Error("diagnostics server failed", zap.Error(err))
		sys.Shutdown()
	}

	if err := sys.Close(); err != nil {
		logger.Error("close failed", zap.Error(err))
	}
}
