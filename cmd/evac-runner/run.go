package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/riverwatch/evacroute/pkg/agents"
	"github.com/riverwatch/evacroute/pkg/config"
	"github.com/riverwatch/evacroute/pkg/discovery"
	"github.com/riverwatch/evacroute/pkg/discovery/files"
	"github.com/riverwatch/evacroute/pkg/emergency"
	"github.com/riverwatch/evacroute/pkg/evac"
	"github.com/riverwatch/evacroute/pkg/graph"
	"github.com/riverwatch/evacroute/pkg/hazard"
	"github.com/riverwatch/evacroute/pkg/hazardsource"
	"github.com/riverwatch/evacroute/pkg/messaging"
	"github.com/riverwatch/evacroute/pkg/metrics"
	"github.com/riverwatch/evacroute/pkg/orchestrator"
	"github.com/riverwatch/evacroute/pkg/planner"
	"github.com/riverwatch/evacroute/pkg/raster"
	"github.com/riverwatch/evacroute/pkg/reporting"
	"github.com/riverwatch/evacroute/pkg/scheduler"
	"github.com/riverwatch/evacroute/pkg/simulate"
	"github.com/riverwatch/evacroute/pkg/transport"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Args:  cobra.NoArgs,
	Short: "Run the evacuation routing service",
	Long:  `Loads the road network and starts the tick loop, optionally replaying a simulation scenario and serving the HTTP/WebSocket surface.`,
	RunE:  runService,
}

func init() {
	runCmd.Flags().String("mode", "medium", "simulation mode (light, medium, heavy, extreme)")
	runCmd.Flags().String("scenario", "", "path to a simulation scenario CSV to replay")
	runCmd.Flags().StringArray("set", []string{}, "override run values (e.g., --set mode=heavy --set ticks=100)")
	runCmd.Flags().String("listen", "", "HTTP listen address (overrides config; empty disables the listener)")
	runCmd.Flags().Int64("ticks", 0, "stop after N ticks (0 = run until interrupted)")
	runCmd.Flags().String("format", "text", "progress output format (text, json)")
	runCmd.Flags().Bool("dry-run", false, "validate the graph source and scenario without running ticks")
	runCmd.Flags().String("data-root", "", "discover graph source, raster tree and roster under this directory")
}

// discoverDataRoot resolves data artifact paths by scanning root,
// overriding the corresponding config entries for anything found.
func discoverDataRoot(root string, cfg *config.Config, logger *reporting.Logger) error {
	client, err := files.New(root)
	if err != nil {
		return err
	}

	if res, err := client.FindOne(discovery.KindGraphSource); err == nil {
		cfg.Graph.Source = res.Path
		logger.Info("Discovered graph source", "path", res.Path)
	} else {
		return err
	}
	if res, err := client.FindOne(discovery.KindRasterTree); err == nil {
		cfg.Raster.Root = res.Path
		logger.Info("Discovered raster tree", "path", res.Path)
	}
	if res, err := client.FindOne(discovery.KindRoster); err == nil {
		cfg.Evacuation.Roster = res.Path
		logger.Info("Discovered shelter roster", "path", res.Path)
	}
	return nil
}

// playbackAgent adapts the scenario runner to the collection phase.
type playbackAgent struct {
	runner *simulate.Runner
}

func (p *playbackAgent) Name() string { return "scenario_playback" }

func (p *playbackAgent) Step(ctx context.Context) error {
	_, err := p.runner.DeliverDue(time.Now())
	return err
}

func runService(cmd *cobra.Command, args []string) error {
	mode, _ := cmd.Flags().GetString("mode")
	scenarioPath, _ := cmd.Flags().GetString("scenario")
	setFlags, _ := cmd.Flags().GetStringArray("set")
	listenAddr, _ := cmd.Flags().GetString("listen")
	maxTicks, _ := cmd.Flags().GetInt64("ticks")
	outputFormat, _ := cmd.Flags().GetString("format")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	dataRoot, _ := cmd.Flags().GetString("data-root")

	// Load configuration
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := applyRunOverrides(parseSetFlags(setFlags), &mode, &maxTicks, cfg); err != nil {
		return err
	}
	if listenAddr == "" {
		listenAddr = cfg.Transport.ListenAddr
	}

	// Initialize logger
	logLevel := reporting.LogLevelInfo
	if verbose {
		logLevel = reporting.LogLevelDebug
	}
	logger := reporting.NewLogger(reporting.LoggerConfig{
		Level:  logLevel,
		Format: reporting.LogFormat(cfg.Framework.LogFormat),
		Output: os.Stdout,
	})

	logger.Info("Evac Runner starting", "version", version, "mode", mode)

	if dataRoot != "" {
		if err := discoverDataRoot(dataRoot, cfg, logger); err != nil {
			return fmt.Errorf("data-root discovery failed: %w", err)
		}
	}

	// Load and validate the road network
	logger.Info("Loading road network", "source", cfg.Graph.Source)
	sourceData, err := os.ReadFile(cfg.Graph.Source)
	if err != nil {
		return fmt.Errorf("failed to read graph source: %w", err)
	}

	validator := graph.NewValidator()
	if err := validator.Validate(sourceData); err != nil {
		for _, e := range validator.Errors {
			logger.Error("Graph source error", "detail", e)
		}
		return fmt.Errorf("graph source validation failed: %w", err)
	}
	for _, warning := range validator.Warnings {
		logger.Warn("Graph source warning", "detail", warning)
	}

	g, err := graph.NewLoader().Load(sourceData)
	if err != nil {
		return fmt.Errorf("failed to load graph: %w", err)
	}
	logger.Info("Road network loaded", "nodes", g.NodeCount(), "edges", g.EdgeCount())

	// Load and validate the scenario, if any
	var scenarioRunner *simulate.Runner
	var scenarioFile *simulate.Scenario
	if scenarioPath != "" {
		sc, warnings, err := simulate.LoadScenarioFile(scenarioPath)
		if err != nil {
			return fmt.Errorf("failed to load scenario: %w", err)
		}
		for _, w := range warnings {
			logger.Warn("Scenario warning", "detail", w)
		}
		scenarioFile = sc
		logger.Info("Scenario loaded", "name", sc.Name, "events", len(sc.Events))
	}

	// Dry run - exit after validation
	if dryRun {
		fmt.Println("Graph source and scenario are valid (dry-run mode)")
		return nil
	}

	// Raster flood-depth service
	rasterSvc := raster.NewService(raster.Config{
		Root: cfg.Raster.Root,
		Align: raster.AlignConfig{
			CenterLat:       cfg.Raster.CenterLat,
			CenterLon:       cfg.Raster.CenterLon,
			BaseCoverageDeg: cfg.Raster.BaseCoverageDeg,
		},
		CacheSize:      cfg.Raster.CacheSize,
		EnabledAtStart: cfg.Raster.Enabled,
	})

	// Hazard fusion engine
	cache := hazard.NewCache(cfg.Hazard.ScoutTTL, cfg.Hazard.FloodTTL)
	engine := hazard.NewEngine(hazard.EngineConfig{
		Graph:         g,
		RasterService: rasterSvc,
		Cache:         cache,
		Weights: hazard.FusionWeights{
			Raster:   cfg.Hazard.RasterWeight,
			Scout:    cfg.Hazard.ScoutWeight,
			Official: cfg.Hazard.OfficialWeight,
		},
		Rates: hazard.DecayRates{
			ScoutFast: cfg.Hazard.KScoutFast,
			ScoutSlow: cfg.Hazard.KScoutSlow,
			Spatial:   cfg.Hazard.KSpatialEdge,
			Official:  cfg.Hazard.KOfficial,
			MinFloor:  cfg.Hazard.MinRiskFloor,
		},
		PropagationRadiusM: cfg.Hazard.PropagationRadiusM,
	})

	// Planner and evacuation selector
	plan := planner.New(planner.Config{Graph: g, MaxSnapM: cfg.Planner.MaxSnapM})

	var selector *evac.Selector
	if cfg.Evacuation.Roster != "" {
		shelters, warnings, err := evac.LoadRoster(cfg.Evacuation.Roster)
		if err != nil {
			logger.Warn("Shelter roster unavailable; evacuation disabled", "error", err)
		} else {
			for _, w := range warnings {
				logger.Warn("Roster warning", "detail", w)
			}
			selector = evac.NewSelector(evac.Config{
				Planner:    plan,
				Shelters:   shelters,
				Candidates: cfg.Evacuation.Candidates,
			})
			logger.Info("Shelter roster loaded", "shelters", len(shelters))
		}
	}

	// Message layer and agents
	router := messaging.NewRouter(messaging.RouterConfig{
		MailboxCapacity: cfg.Messaging.MailboxCapacity,
		SendTimeout:     cfg.Messaging.SendTimeout,
	})

	// Upstream refresh scheduler, when an endpoint is configured
	var sched *scheduler.Scheduler
	floodCollector := agents.NewFloodCollector(router, nil, logger)
	if cfg.Scheduler.UpstreamURL != "" {
		source, err := hazardsource.New(hazardsource.Config{
			URL:     cfg.Scheduler.UpstreamURL,
			Timeout: cfg.Scheduler.Timeout,
		})
		if err != nil {
			return fmt.Errorf("failed to create upstream client: %w", err)
		}
		sched = scheduler.New(scheduler.Config{
			Source:   source,
			Deliver:  floodCollector.Deliver,
			Interval: cfg.Scheduler.Interval,
		})
		floodCollector.SetScheduler(sched)
	}
	scoutCollector := agents.NewScoutCollector(router, logger)
	plannerAgent := agents.NewPlannerAgent(router, plan, selector, logger)
	evacManager := agents.NewEvacuationManager(router, cfg.Messaging.ReplyTimeout, logger)

	// Emergency stop controller
	emergencyCtrl := emergency.New(emergency.Config{
		StopFile:             cfg.Emergency.StopFile,
		PollInterval:         time.Second,
		EnableSignalHandlers: true,
	})
	if err := emergencyCtrl.RemoveStopFile(); err != nil {
		logger.Warn("Could not clear stale stop file", "error", err)
	}

	// Reporting
	progress := reporting.NewProgressReporter(reporting.OutputFormat(outputFormat), logger)
	storage, err := reporting.NewStorage(cfg.Reporting.OutputDir, cfg.Reporting.KeepLastN, logger)
	if err != nil {
		return fmt.Errorf("failed to create report storage: %w", err)
	}
	registry := metrics.NewRegistry()
	hub := transport.NewHub(logger)

	// Orchestrator
	collectors := []orchestrator.Agent{floodCollector, scoutCollector}
	if scenarioFile != nil {
		scenarioRunner = simulate.NewRunner(scenarioFile, simulate.Handlers{
			Flood: func(readings []hazard.HazardReading) error {
				return floodCollector.Deliver(context.Background(), readings)
			},
			Scout: scoutCollector.Enqueue,
		})
		collectors = append([]orchestrator.Agent{&playbackAgent{runner: scenarioRunner}}, collectors...)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	totalRoutes := 0
	started := time.Now()

	hub.Broadcast(reporting.NewEnvelope(reporting.MsgSystemStatus, map[string]interface{}{"state": "starting"}))

	orch, err := orchestrator.New(orchestrator.Config{
		Cfg:           cfg,
		Logger:        logger,
		Graph:         g,
		Engine:        engine,
		RasterService: rasterSvc,
		Planner:       plan,
		Selector:      selector,
		Emergency:     emergencyCtrl,
		Collectors:    collectors,
		RoutingAgents: []orchestrator.Agent{evacManager, plannerAgent},
		Hooks: orchestrator.Hooks{
			OnRiskUpdate: func(data reporting.RiskUpdateData) {
				hub.Broadcast(reporting.NewEnvelope(reporting.MsgRiskUpdate, data))
			},
			OnCriticalAlert: func(reading hazard.HazardReading) {
				hub.Broadcast(reporting.NewEnvelope(reporting.MsgCriticalAlert, map[string]interface{}{
					"location_id": reading.LocationID,
					"timestamp":   reading.Timestamp,
				}))
			},
			OnFloodUpdate: func(readings []hazard.HazardReading) {
				hub.Broadcast(reporting.NewEnvelope(reporting.MsgFloodUpdate, readings))
			},
			OnTickCompleted: func(result *orchestrator.TickResult) {
				report := tickReportFrom(result)
				progress.ReportTickCompleted(report)
				if _, err := storage.SaveTickReport(report); err != nil {
					logger.Warn("Failed to save tick report", "error", err)
				}
				registry.ObserveTick(result.Duration, result.Success,
					result.Summary.EdgesUpdated, result.Summary.AverageRisk, result.RoutesServed)
				for _, name := range router.Names() {
					if box, ok := router.Mailbox(name); ok {
						registry.SetMailboxDepth(name, box.Depth())
					}
				}
				totalRoutes += result.RoutesServed
				if maxTicks > 0 && result.TickCount+1 >= maxTicks {
					cancel()
				}
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create orchestrator: %w", err)
	}

	// The hazard agent stages into the orchestrator's bus, so it is wired
	// after the orchestrator exists.
	orch.SetHazardAgent(agents.NewHazardAgent(router, orch.Bus(), g, logger))

	// Arm the controllers
	emergencyCtrl.Start(ctx)
	emergencyCtrl.OnStop(func() {
		orch.Stop()
		cancel()
	})
	if sched != nil {
		sched.Start(ctx)
		defer sched.Stop()
	}

	// HTTP surface
	if listenAddr != "" {
		server := transport.NewServer(transport.Config{
			Orchestrator:  orch,
			Planner:       plan,
			Selector:      selector,
			Scheduler:     sched,
			RasterService: rasterSvc,
			Metrics:       registry,
			Hub:           hub,
			Logger:        logger,
		})
		go func() {
			if err := server.ListenAndServe(listenAddr); err != nil {
				logger.Error("HTTP listener stopped", "error", err)
			}
		}()
	}

	// Start the tick loop
	if err := orch.Start(mode); err != nil {
		return err
	}
	if scenarioRunner != nil {
		scenarioRunner.Start(time.Now())
	}

	err = orch.RunLoop(ctx)
	progress.ReportSessionSummary(orch.GetStatus().TickCount, totalRoutes, started)
	orch.ResetLog().PrintAuditLog()

	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// tickReportFrom converts an orchestrator result into the persisted shape.
func tickReportFrom(result *orchestrator.TickResult) *reporting.TickReport {
	report := &reporting.TickReport{
		TickID:         result.TickID,
		TickCount:      result.TickCount,
		StartTime:      result.StartTime,
		EndTime:        result.EndTime,
		Duration:       result.Duration.String(),
		ReturnPeriod:   string(result.ReturnPeriod),
		TimeStep:       result.TimeStep,
		Success:        result.Success,
		Message:        result.Message,
		EdgesUpdated:   result.Summary.EdgesUpdated,
		AverageRisk:    result.Summary.AverageRisk,
		RiskTrend:      string(result.Summary.Trend),
		RiskChangeRate: result.Summary.RiskChangeRate,
		RoutesServed:   result.RoutesServed,
	}
	if result.Success {
		report.Status = reporting.StatusCompleted
	} else {
		report.Status = reporting.StatusFailed
	}
	for _, err := range result.Errors {
		report.Errors = append(report.Errors, err.Error())
	}
	return report
}
