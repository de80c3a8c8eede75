package system

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/KevinKickass/OpenStudioCore/internal/api/rest"
	"github.com/KevinKickass/OpenStudioCore/internal/api/websocket"
	"github.com/KevinKickass/OpenStudioCore/internal/config"
	"github.com/KevinKickass/OpenStudioCore/internal/interfaces"
	"github.com/KevinKickass/OpenStudioCore/internal/layout"
	"github.com/KevinKickass/OpenStudioCore/internal/metrics"
	"github.com/KevinKickass/OpenStudioCore/internal/robot"
	"github.com/KevinKickass/OpenStudioCore/internal/simulator"
	"github.com/KevinKickass/OpenStudioCore/internal/studio"
	"github.com/KevinKickass/OpenStudioCore/internal/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthService is the gRPC health service name reported alongside the
// overall server status.
const HealthService = "openstudiocore.Studio"

const restShutdownTimeout = 5 * time.Second

type LifecycleManager struct {
	config   *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	studio   *studio.Studio
	wsHub    *websocket.Hub

	restServer *rest.Server
	grpcServer *grpc.Server
	health     *health.Server

	httpListener net.Listener
	grpcListener net.Listener

	runGroup  *errgroup.Group
	cancelRun context.CancelFunc

	stateMu      sync.RWMutex
	currentState SystemState
	lastError    error

	shutdownOnce sync.Once
}

// NewLifecycleManager builds the simulated robots described by lay and
// everything serving them. Nothing listens until Start.
func NewLifecycleManager(cfg *config.Config, lay *layout.Layout, logger *zap.Logger) (*LifecycleManager, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector, err := metrics.New(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	targets, err := lay.BuildTargets()
	if err != nil {
		return nil, fmt.Errorf("failed to build targets: %w", err)
	}

	actuators := make([]robot.Actuator, 0, len(lay.Robots))
	for _, spec := range lay.Robots {
		robotCfg := spec.SimulatorConfig()
		if rate := cfg.Simulator.FaultRateOverride; rate != nil {
			robotCfg.FaultRate = *rate
		}
		actuators = append(actuators, simulator.NewRobot(robotCfg,
			simulator.WithTickInterval(cfg.Simulator.TickInterval),
			simulator.WithLogger(logger.Named("simulator"))))
	}

	st, err := studio.New(actuators, targets,
		studio.WithLogger(logger.Named("studio")),
		studio.WithMetrics(collector),
		studio.WithMaxMessages(cfg.Studio.MaxMessages),
		studio.WithMoveTimeout(cfg.Studio.MoveTimeout))
	if err != nil {
		return nil, fmt.Errorf("failed to create studio: %w", err)
	}

	hub := websocket.NewHub(logger.Named("websocket"), st)

	lm := &LifecycleManager{
		config:       cfg,
		logger:       logger,
		registry:     registry,
		studio:       st,
		wsHub:        hub,
		currentState: StateInitializing,
	}
	lm.restServer = rest.NewServer(cfg.Server, st, hub, registry, logger.Named("rest"))
	lm.restServer.SetStatusProvider(lm)

	return lm, nil
}

// Start opens both listeners and serves in the background.
func (lm *LifecycleManager) Start() error {
	lm.logger.Info("Starting OpenStudioCore")

	httpLis, err := net.Listen("tcp", fmt.Sprintf(":%d", lm.config.Server.HTTPPort))
	if err != nil {
		lm.setError(fmt.Errorf("failed to start REST API: %w", err))
		return lm.lastErr()
	}
	grpcLis, err := net.Listen("tcp", fmt.Sprintf(":%d", lm.config.Server.GRPCPort))
	if err != nil {
		httpLis.Close()
		lm.setError(fmt.Errorf("failed to start gRPC: %w", err))
		return lm.lastErr()
	}
	lm.httpListener = httpLis
	lm.grpcListener = grpcLis

	lm.grpcServer = grpc.NewServer()
	lm.health = health.NewServer()
	healthpb.RegisterHealthServer(lm.grpcServer, lm.health)
	lm.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	lm.health.SetServingStatus(HealthService, healthpb.HealthCheckResponse_SERVING)

	runCtx, cancel := context.WithCancel(context.Background())
	group, groupCtx := errgroup.WithContext(runCtx)
	lm.runGroup = group
	lm.cancelRun = cancel

	events := lm.studio.Subscribe()

	group.Go(func() error {
		return lm.restServer.Serve(httpLis)
	})
	group.Go(func() error {
		lm.logger.Info("gRPC server listening",
			zap.String("address", grpcLis.Addr().String()),
			zap.String("services", "grpc.health.v1.Health"))
		if err := lm.grpcServer.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("gRPC server failed: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		lm.wsHub.Run(groupCtx)
		return nil
	})
	group.Go(func() error {
		lm.wsHub.Forward(groupCtx, events)
		return nil
	})

	lm.setState(StateRunning)

	lm.logger.Info("System started successfully",
		zap.String("http_address", httpLis.Addr().String()),
		zap.String("grpc_address", grpcLis.Addr().String()),
		zap.Int("robots", len(lm.studio.Robots())),
		zap.Int("targets", len(lm.studio.Targets())))

	return nil
}

// Wait blocks until a server stops. It returns the first serve error, or
// nil after a clean Shutdown.
func (lm *LifecycleManager) Wait() error {
	if lm.runGroup == nil {
		return nil
	}
	return lm.runGroup.Wait()
}

// Shutdown gracefully shuts down the system
func (lm *LifecycleManager) Shutdown(ctx context.Context) error {
	var shutdownErr error

	lm.shutdownOnce.Do(func() {
		lm.logger.Info("Shutting down system")
		lm.setState(StateStopping)

		shutdownErr = lm.gracefulShutdown(ctx)

		if shutdownErr != nil {
			lm.setError(shutdownErr)
		}
		lm.setState(StateStopped)
	})

	return shutdownErr
}

func (lm *LifecycleManager) gracefulShutdown(ctx context.Context) error {
	if lm.health != nil {
		lm.health.Shutdown()
	}

	g, gctx := errgroup.WithContext(ctx)

	// Stop every move and release the robots
	g.Go(func() error {
		lm.studio.Cleanup()
		return nil
	})

	if lm.httpListener != nil {
		g.Go(func() error {
			shutdownCtx, cancel := context.WithTimeout(gctx, restShutdownTimeout)
			defer cancel()
			if err := lm.restServer.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("rest api shutdown failed: %w", err)
			}
			return nil
		})
	}

	if lm.grpcServer != nil {
		g.Go(func() error {
			lm.logger.Info("Stopping gRPC server")
			stopped := make(chan struct{})
			go func() {
				lm.grpcServer.GracefulStop()
				close(stopped)
			}()
			select {
			case <-stopped:
				return nil
			case <-gctx.Done():
				lm.grpcServer.Stop()
				return fmt.Errorf("grpc shutdown: %w", gctx.Err())
			}
		})
	}

	err := g.Wait()

	if lm.cancelRun != nil {
		lm.cancelRun()
		if runErr := lm.runGroup.Wait(); runErr != nil && err == nil {
			err = runErr
		}
	}

	if err != nil {
		lm.logger.Warn("Shutdown completed with errors", zap.Error(err))
		return err
	}
	lm.logger.Info("Graceful shutdown completed")
	return nil
}

// Studio returns the studio aggregator.
func (lm *LifecycleManager) Studio() *studio.Studio {
	return lm.studio
}

// HTTPAddr is the bound REST address, valid after Start.
func (lm *LifecycleManager) HTTPAddr() net.Addr {
	if lm.httpListener == nil {
		return nil
	}
	return lm.httpListener.Addr()
}

// GRPCAddr is the bound gRPC address, valid after Start.
func (lm *LifecycleManager) GRPCAddr() net.Addr {
	if lm.grpcListener == nil {
		return nil
	}
	return lm.grpcListener.Addr()
}

func (lm *LifecycleManager) State() SystemState {
	lm.stateMu.RLock()
	defer lm.stateMu.RUnlock()
	return lm.currentState
}

// GetCurrentStatus returns current system status (Interface implementation)
func (lm *LifecycleManager) GetCurrentStatus() interfaces.SystemStatus {
	robots := lm.studio.Robots()
	moving := 0
	for _, r := range robots {
		if r.Status() == types.RobotStatusMoving {
			moving++
		}
	}

	return interfaces.SystemStatus{
		State:          lm.State().String(),
		SelectedTarget: lm.studio.SelectedTarget().Name(),
		RobotCount:     len(robots),
		MovingRobots:   moving,
		TargetCount:    len(lm.studio.Targets()),
		WSClients:      lm.wsHub.GetClientCount(),
	}
}

func (lm *LifecycleManager) setState(state SystemState) {
	lm.stateMu.Lock()
	if err := ValidateTransition(lm.currentState, state); err != nil {
		lm.stateMu.Unlock()
		lm.logger.Warn("Ignoring state change", zap.Error(err))
		return
	}
	lm.currentState = state
	lm.stateMu.Unlock()

	lm.broadcastStatus()
}

func (lm *LifecycleManager) setError(err error) {
	lm.stateMu.Lock()
	lm.currentState = StateError
	lm.lastError = err
	lm.stateMu.Unlock()

	lm.logger.Error("System error", zap.Error(err))
	lm.broadcastStatus()
}

func (lm *LifecycleManager) lastErr() error {
	lm.stateMu.RLock()
	defer lm.stateMu.RUnlock()
	return lm.lastError
}

func (lm *LifecycleManager) getStatusInternal() SystemStatus {
	lm.stateMu.RLock()
	defer lm.stateMu.RUnlock()

	status := SystemStatus{
		State:     lm.currentState,
		Timestamp: time.Now().Unix(),
	}
	if lm.lastError != nil {
		status.Error = lm.lastError.Error()
	}
	return status
}

func (lm *LifecycleManager) broadcastStatus() {
	lm.wsHub.Broadcast(websocket.NewMessage(websocket.MessageTypeSystemStatus, lm.getStatusInternal()))
}
