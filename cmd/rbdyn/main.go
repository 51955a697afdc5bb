package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/san-kum/rbdyn/internal/config"
	"github.com/san-kum/rbdyn/internal/experiment"
	"github.com/san-kum/rbdyn/internal/integrators"
	"github.com/san-kum/rbdyn/internal/logger"
	"github.com/san-kum/rbdyn/internal/models"
	"github.com/san-kum/rbdyn/internal/rbd"
	"github.com/san-kum/rbdyn/internal/viz"
)

var (
	dataDir  string
	logLevel string
	logFile  string

	// run configuration
	configFile   string
	preset       string
	descPath     string
	floatingBase string
	tips         []string
	dt           float64
	duration     float64
	seed         int64
	integrator   string
	controller   string
	method       string
	solver       string
	adaptive     bool
	tolerance    float64
	initQ        []float64
	initQDot     []float64
	kp, ki, kd   float64
	target       []float64
	maxEffort    float64
	links        int
	mass         float64
	length       float64
	damping      float64
	gravity      float64
	metricNames  []string

	// simulate
	ensemble   int
	workers    int
	spread     float64
	exportPath string

	// live
	frameRate     int
	stepsPerFrame int
	theme         string

	// plot
	columns   []int
	phase     []int
	plotWidth int

	// export
	exportFormat string

	// dynamics
	tau []float64

	// bench
	benchIters int
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "rbdyn",
		Short:         "rigid-body dynamics and simulation",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return logger.Init(logLevel, logFile)
		},
		RunE: runPicker,
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".rbdyn", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also log to this file, rotated")

	infoCmd := &cobra.Command{
		Use:   "info [model]",
		Short: "print the degrees of freedom and body hierarchy",
		Args:  cobra.MaximumNArgs(1),
		RunE:  showInfo,
	}
	addModelFlags(infoCmd)

	dynamicsCmd := &cobra.Command{
		Use:   "dynamics [model]",
		Short: "evaluate H, C and qddot at one state",
		Args:  cobra.MaximumNArgs(1),
		RunE:  evalDynamics,
	}
	addModelFlags(dynamicsCmd)
	dynamicsCmd.Flags().Float64SliceVar(&initQ, "q", nil, "joint positions")
	dynamicsCmd.Flags().Float64SliceVar(&initQDot, "qdot", nil, "joint velocities")
	dynamicsCmd.Flags().Float64SliceVar(&tau, "tau", nil, "applied generalized forces")
	dynamicsCmd.Flags().StringVar(&solver, "solver", "lu", "linear solver (lu, colpivqr, qr, llt)")

	simulateCmd := &cobra.Command{
		Use:     "simulate [model]",
		Aliases: []string{"run"},
		Short:   "run a simulation and store it",
		Args:    cobra.MaximumNArgs(1),
		RunE:    runSimulation,
	}
	addRunFlags(simulateCmd)
	simulateCmd.Flags().IntVar(&ensemble, "ensemble", 0, "run this many perturbed copies in parallel instead")
	simulateCmd.Flags().IntVar(&workers, "workers", 0, "parallel workers for --ensemble (0 = GOMAXPROCS)")
	simulateCmd.Flags().Float64Var(&spread, "spread", 0.05, "initial q perturbation for --ensemble")
	simulateCmd.Flags().StringVar(&exportPath, "export", "", "also export the run (.json or .csv)")

	liveCmd := &cobra.Command{
		Use:   "live [model]",
		Short: "run a simulation with live visualization",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLive,
	}
	addRunFlags(liveCmd)
	liveCmd.Flags().IntVar(&frameRate, "fps", 30, "frame rate")
	liveCmd.Flags().IntVar(&stepsPerFrame, "steps", 0, "integration steps per frame (0 = real time)")
	liveCmd.Flags().StringVar(&theme, "theme", viz.Themes[0].Name, "color theme")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().IntSliceVar(&columns, "cols", nil, "state columns to plot (default: every q)")
	plotCmd.Flags().IntSliceVar(&phase, "phase", nil, "two state columns for a phase plot")
	plotCmd.Flags().IntVar(&plotWidth, "width", 80, "chart width")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "json or csv")
	exportCmd.Flags().StringVarP(&exportPath, "out", "o", "", "output file (default stdout)")

	deleteCmd := &cobra.Command{
		Use:   "delete [run_id]",
		Short: "delete a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  deleteRun,
	}

	benchCmd := &cobra.Command{
		Use:   "bench [model]",
		Short: "time forward dynamics per method and solver",
		Args:  cobra.MaximumNArgs(1),
		RunE:  benchModel,
	}
	addModelFlags(benchCmd)
	benchCmd.Flags().IntVar(&benchIters, "n", 2000, "evaluations per configuration")

	presetsCmd := &cobra.Command{
		Use:   "presets [model]",
		Short: "list presets",
		Args:  cobra.MaximumNArgs(1),
		RunE:  listPresets,
	}

	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "list built-in models and components",
		RunE:  listModels,
	}

	rootCmd.AddCommand(infoCmd, dynamicsCmd, simulateCmd, liveCmd, listCmd, plotCmd, exportCmd, deleteCmd, benchCmd, presetsCmd, modelsCmd)

	err := rootCmd.Execute()
	logger.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// addModelFlags registers the flags that pick and shape a mechanism.
func addModelFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&configFile, "config", "", "run configuration file (yaml)")
	f.StringVar(&preset, "preset", "", "named preset of the model")
	f.StringVar(&descPath, "description", "", "mechanism description file (yaml)")
	f.StringVar(&floatingBase, "floating-base", "", "override the description's floating base")
	f.StringSliceVar(&tips, "tips", nil, "cut the description below these links")
	f.StringVar(&method, "method", "lagrangian", "forward dynamics method (lagrangian, aba)")
	f.IntVar(&links, "links", 0, "number of links (chain)")
	f.Float64Var(&mass, "mass", 0, "link mass")
	f.Float64Var(&length, "length", 0, "link length")
	f.Float64Var(&damping, "damping", 0, "joint damping")
	f.Float64Var(&gravity, "gravity", 0, "gravity magnitude")
}

func addRunFlags(cmd *cobra.Command) {
	addModelFlags(cmd)
	f := cmd.Flags()
	f.Float64Var(&dt, "dt", config.DefaultDt, "timestep")
	f.Float64Var(&duration, "time", config.DefaultDuration, "duration")
	f.Int64Var(&seed, "seed", 0, "random seed")
	f.StringVar(&integrator, "integrator", "rk4", "integrator")
	f.StringVar(&controller, "controller", "none", "controller")
	f.StringVar(&solver, "solver", "lu", "linear solver (lu, colpivqr, qr, llt)")
	f.BoolVar(&adaptive, "adaptive", false, "adaptive step size (rk45)")
	f.Float64Var(&tolerance, "tol", config.DefaultTolerance, "adaptive step tolerance")
	f.Float64SliceVar(&initQ, "q", nil, "initial joint positions")
	f.Float64SliceVar(&initQDot, "qdot", nil, "initial joint velocities")
	f.Float64Var(&kp, "kp", config.DefaultKp, "proportional gain")
	f.Float64Var(&ki, "ki", config.DefaultKi, "integral gain")
	f.Float64Var(&kd, "kd", config.DefaultKd, "derivative gain")
	f.Float64SliceVar(&target, "target", nil, "controller target q")
	f.Float64Var(&maxEffort, "max-effort", 0, "clamp every actuated DoF to this effort")
	f.StringSliceVar(&metricNames, "metrics", nil, "metrics to record (default: all that apply)")
}

// resolveConfig builds the run configuration. A config file is read
// first, then a preset, then the model argument; flags override all of
// them, but only when set.
func resolveConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	model := ""
	if len(args) > 0 {
		model = args[0]
	}

	flags := cmd.Flags()
	changed := func(name string) bool {
		return flags.Lookup(name) != nil && flags.Changed(name)
	}

	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
		if !cmd.Flags().Changed("log-level") && !cmd.Flags().Changed("log-file") && cfg.Log.Level != "" {
			if err := logger.Init(cfg.Log.Level, cfg.Log.File); err != nil {
				return nil, err
			}
		}
		if model == "" {
			model = cfg.Model
		}
	}
	if preset != "" {
		if model == "" {
			return nil, fmt.Errorf("--preset needs a model")
		}
		p := config.GetPreset(model, preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(model))
		}
		cfg = p
	} else if model != "" && model != cfg.Model {
		cfg.Model = model
		cfg.InitState = config.InitStateConfig{}
	}

	if changed("description") {
		cfg.Description = descPath
		cfg.InitState = config.InitStateConfig{}
	}
	if changed("floating-base") {
		cfg.FloatingBase = floatingBase
	}
	if changed("tips") {
		cfg.Tips = tips
	}
	if changed("method") {
		cfg.Method = method
	}
	if changed("solver") {
		cfg.Solver = solver
	}
	if changed("links") {
		cfg.Params.Links = links
	}
	if changed("mass") {
		cfg.Params.Mass = mass
	}
	if changed("length") {
		cfg.Params.Length = length
	}
	if changed("damping") {
		cfg.Params.Damping = damping
	}
	if changed("gravity") {
		cfg.Params.Gravity = gravity
	}
	if changed("dt") {
		cfg.Dt = dt
	}
	if changed("time") {
		cfg.Duration = duration
	}
	if changed("seed") {
		cfg.Seed = seed
	}
	if changed("integrator") {
		cfg.Integrator = integrator
	}
	if changed("controller") {
		cfg.Controller = controller
	}
	if changed("adaptive") {
		cfg.Adaptive = adaptive
	}
	if changed("tol") {
		cfg.Tolerance = tolerance
	}
	if changed("q") {
		cfg.InitState.Q = initQ
	}
	if changed("qdot") {
		cfg.InitState.QDot = initQDot
	}
	if changed("kp") {
		cfg.ControllerParams.Kp = kp
	}
	if changed("ki") {
		cfg.ControllerParams.Ki = ki
	}
	if changed("kd") {
		cfg.ControllerParams.Kd = kd
	}
	if changed("target") {
		cfg.ControllerParams.Target = target
	}
	if changed("max-effort") {
		cfg.ControllerParams.MaxEffort = maxEffort
	}
	if changed("metrics") {
		cfg.Metrics = metricNames
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger.Log.Debug("configuration resolved",
		zap.String("model", cfg.Model),
		zap.String("description", cfg.Description),
		zap.String("integrator", cfg.Integrator),
		zap.String("controller", cfg.Controller),
	)
	return cfg, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func showInfo(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}
	mc, err := experiment.BuildMechanism(cfg)
	if err != nil {
		return err
	}

	m := mc.Model
	fmt.Printf("model: %s\n", mc.Name)
	fmt.Printf("dof: %d  q size: %d  qdot size: %d  bodies: %d  fixed bodies: %d\n",
		m.DoFCount, m.QSize, m.QDotSize, m.BodyCount()-1, len(m.FixedBodies))
	fmt.Printf("gravity: %v\n", m.Gravity)
	if mc.Joints != nil {
		fmt.Printf("floating base: %s\n", mc.Base)
	}

	fmt.Println("\ndegrees of freedom:")
	fmt.Print(rbd.FormatDoFOverview(m))

	fmt.Println("\nhierarchy:")
	fmt.Println(rbd.Hierarchy(m))

	if mc.Joints != nil && mc.Joints.Len() > 0 {
		fmt.Println("\njoints:")
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tPOS MIN\tPOS MAX\tVEL MAX\tEFFORT\tDAMPING\tFRICTION")
		ji := mc.Joints
		for i, name := range ji.Names {
			fmt.Fprintf(w, "%s\t%.3f\t%.3f\t%.3f\t%.3f\t%.3f\t%.3f\n",
				name, ji.PositionMin[i], ji.PositionMax[i], ji.VelocityMax[i], ji.MaxEffort[i], ji.Damping[i], ji.Friction[i])
		}
		return w.Flush()
	}
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}
	m, err := liveModel(cfg)
	if err != nil {
		return err
	}
	return viz.Run(m)
}

// liveModel sets up an experiment and wraps it in the viewer.
func liveModel(cfg *config.Config) (viz.Model, error) {
	exp := experiment.New(cfg)
	if err := exp.Setup(); err != nil {
		return viz.Model{}, err
	}
	integ, err := integrators.New(cfg.Integrator)
	if err != nil {
		return viz.Model{}, err
	}

	steps := stepsPerFrame
	if steps <= 0 {
		steps = max(1, int(1/(float64(frameRate)*cfg.Dt)))
	}
	return viz.NewModel(exp.Mechanism(), integ, exp.Controller(), exp.Initial(), viz.Options{
		Title:         exp.Mechanism().Name,
		Dt:            cfg.Dt,
		StepsPerFrame: steps,
		FPS:           frameRate,
		Theme:         theme,
	})
}

// runPicker shows the model menu; each model starts from its first preset
// when it has one.
func runPicker(cmd *cobra.Command, args []string) error {
	if frameRate == 0 {
		frameRate = 30
	}
	items := make([]viz.PickerItem, 0)
	for _, info := range models.List() {
		items = append(items, viz.PickerItem{Name: info.Name, Summary: info.Summary})
	}
	launch := func(name string) (viz.Model, error) {
		cfg := config.DefaultConfig()
		if names := config.ListPresets(name); len(names) > 0 {
			cfg = config.GetPreset(name, names[0])
		} else {
			cfg.Model = name
			cfg.InitState = config.InitStateConfig{}
		}
		return liveModel(cfg)
	}
	return viz.Run(viz.NewPicker(items, launch))
}
