package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/rbdyn/internal/config"
	"github.com/san-kum/rbdyn/internal/dynamics"
	"github.com/san-kum/rbdyn/internal/experiment"
	"github.com/san-kum/rbdyn/internal/logger"
	"github.com/san-kum/rbdyn/internal/models"
	"github.com/san-kum/rbdyn/internal/sim"
	"github.com/san-kum/rbdyn/internal/storage"
	"github.com/san-kum/rbdyn/internal/viz"
)

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}
	if cfg.Seed == 0 && !cmd.Flags().Changed("seed") {
		cfg.Seed = time.Now().UnixNano()
	}

	exp := experiment.New(cfg)
	if err := exp.Setup(); err != nil {
		return err
	}
	mc := exp.Mechanism()

	ctx, cancel := signalContext()
	defer cancel()

	if ensemble > 0 {
		return runEnsemble(ctx, exp)
	}

	fmt.Printf("running %s simulation...\n", mc.Name)
	start := time.Now()
	result, err := exp.Run(ctx)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	meta := storage.RunMetadata{
		Model:        mc.Name,
		Description:  cfg.Description,
		Seed:         cfg.Seed,
		Dt:           cfg.Dt,
		Duration:     cfg.Duration,
		Method:       mc.Method.String(),
		Solver:       mc.Solver.String(),
		Integrator:   cfg.Integrator,
		Controller:   cfg.Controller,
		PositionSize: mc.PositionSize(),
		StateDim:     mc.StateDim(),
		ControlDim:   mc.ControlDim(),
		Labels:       mc.Labels(),
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	runID, err := st.Save(meta, result)
	if err != nil {
		return err
	}

	if exportPath != "" {
		format := strings.TrimPrefix(filepath.Ext(exportPath), ".")
		if err := storage.ExportFile(exportPath, format, meta, result); err != nil {
			return err
		}
		fmt.Printf("exported to %s\n", exportPath)
	}

	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("steps: %d\n", result.StepsTaken)
	fmt.Printf("energy drift: %.3e\n", result.EnergyDrift)
	for _, e := range result.Errors {
		fmt.Printf("warning: %v\n", e)
	}
	printMetrics(result.Metrics)
	return nil
}

func printMetrics(m map[string]float64) {
	if len(m) == 0 {
		return
	}
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Println("\nmetrics:")
	for _, name := range names {
		fmt.Printf("  %s: %.6f\n", name, m[name])
	}
}

func runEnsemble(ctx context.Context, exp *experiment.Experiment) error {
	fmt.Printf("running %d perturbed %s simulations...\n", ensemble, exp.Mechanism().Name)
	start := time.Now()
	results, err := exp.RunEnsemble(ctx, ensemble, workers, spread)
	if err != nil {
		return err
	}
	fmt.Printf("completed in %v\n\n", time.Since(start))

	drift := make([]float64, len(results))
	perMetric := make(map[string][]float64)
	for i, r := range results {
		drift[i] = r.EnergyDrift
		for name, v := range r.Metrics {
			perMetric[name] = append(perMetric[name], v)
		}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "QUANTITY\tMEAN\tSTD\tMIN\tMAX")
	row := func(name string, v []float64) {
		mean, std := stat.MeanStdDev(v, nil)
		fmt.Fprintf(w, "%s\t%.6g\t%.6g\t%.6g\t%.6g\n", name, mean, std, floats.Min(v), floats.Max(v))
	}
	row("energy_drift", drift)
	names := make([]string, 0, len(perMetric))
	for name := range perMetric {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		row(name, perMetric[name])
	}
	return w.Flush()
}

func evalDynamics(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}
	mc, err := experiment.BuildMechanism(cfg)
	if err != nil {
		return err
	}
	x, err := cfg.GetInitState(mc)
	if err != nil {
		return err
	}
	q, qdot := mc.Split(x)

	m := mc.Model
	n := m.DoFCount
	u := make([]float64, n)
	if len(tau) > n {
		return fmt.Errorf("tau has %d entries, model has %d DoF", len(tau), n)
	}
	copy(u, tau)

	d := mc.Data()
	H := mat.NewDense(max(n, 1), max(n, 1), nil)
	if err := dynamics.CompositeRigidBodyAlgorithm(m, d, q, H, true); err != nil {
		return err
	}
	C := make([]float64, n)
	if err := dynamics.NonlinearEffects(m, d, q, qdot, C, nil); err != nil {
		return err
	}

	fmt.Printf("q    = %v\n", fmtVec(q))
	fmt.Printf("qdot = %v\n", fmtVec(qdot))
	fmt.Printf("tau  = %v\n\n", fmtVec(u))
	fmt.Printf("H =\n%v\n\n", mat.Formatted(H, mat.Prefix("    "), mat.Squeeze()))
	fmt.Printf("C = %v\n\n", fmtVec(C))

	// qddot for tau alone, so that inverse dynamics can round-trip it
	mc.Damping = nil
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "METHOD\tSOLVER\tQDDOT")
	var ref []float64
	maxDiff := 0.0
	for _, method := range []models.Method{models.Lagrangian, models.ArticulatedBody} {
		solvers := dynamics.Solvers()
		if method == models.ArticulatedBody {
			solvers = solvers[:1]
		}
		for _, s := range solvers {
			mc.Method, mc.Solver = method, s
			qddot := make([]float64, n)
			label := s.String()
			if method == models.ArticulatedBody {
				label = "-"
			}
			if err := mc.Accelerations(q, qdot, u, qddot); err != nil {
				fmt.Fprintf(w, "%s\t%s\terror: %v\n", method, label, err)
				continue
			}
			if ref == nil {
				ref = qddot
			} else {
				maxDiff = math.Max(maxDiff, floats.Distance(ref, qddot, math.Inf(1)))
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", method, label, fmtVec(qddot))
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\nmax disagreement: %.3e\n", maxDiff)

	if ref != nil {
		back := make([]float64, n)
		if err := dynamics.InverseDynamics(m, d, q, qdot, ref, back, nil); err != nil {
			return err
		}
		fmt.Printf("inverse dynamics residual: %.3e\n", floats.Distance(back, u, math.Inf(1)))
	}
	return nil
}

func fmtVec(v []float64) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = fmt.Sprintf("%.5g", x)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func benchModel(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}
	mc, err := experiment.BuildMechanism(cfg)
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(1))
	states := make([]sim.State, 64)
	for i := range states {
		x := make(sim.State, mc.StateDim())
		for k := range x {
			x[k] = 2*rng.Float64() - 1
		}
		mc.Project(x)
		states[i] = x
	}
	u := make(sim.Control, mc.ControlDim())

	fmt.Printf("benchmarking %s (%d DoF, %d evaluations each)\n\n", mc.Name, mc.Model.DoFCount, benchIters)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "METHOD\tSOLVER\tNS/OP\tEVALS/S")
	for _, method := range []models.Method{models.Lagrangian, models.ArticulatedBody} {
		solvers := dynamics.Solvers()
		if method == models.ArticulatedBody {
			solvers = solvers[:1]
		}
		for _, s := range solvers {
			mc.Method, mc.Solver = method, s
			label := s.String()
			if method == models.ArticulatedBody {
				label = "-"
			}
			start := time.Now()
			var failed error
			for i := 0; i < benchIters; i++ {
				if _, err := mc.Derivative(states[i%len(states)], u, 0); err != nil {
					failed = err
					break
				}
			}
			if failed != nil {
				fmt.Fprintf(w, "%s\t%s\terror: %v\t\n", method, label, failed)
				continue
			}
			per := time.Since(start) / time.Duration(max(benchIters, 1))
			fmt.Fprintf(w, "%s\t%s\t%d\t%.0f\n", method, label, per.Nanoseconds(), float64(time.Second)/float64(per))
			logger.Log.Debug("bench", zap.Stringer("method", method), zap.String("solver", label), zap.Duration("per_op", per))
		}
	}
	return w.Flush()
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMODEL\tTIME\tDURATION\tDT\tMETHOD\tINTEG\tCTRL\tDRIFT")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2fs\t%.4fs\t%s\t%s\t%s\t%.2e\n",
			run.ID,
			run.Model,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Duration,
			run.Dt,
			run.Method,
			run.Integrator,
			run.Controller,
			run.EnergyDrift,
		)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]
	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	tr, err := st.LoadTrajectory(runID)
	if err != nil {
		return err
	}
	if len(tr.States) == 0 {
		return errors.New("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("model: %s\n", meta.Model)
	fmt.Printf("samples: %d over %.2fs\n\n", len(tr.States), tr.Times[len(tr.Times)-1])

	if len(phase) > 0 {
		if len(phase) != 2 {
			return fmt.Errorf("--phase needs two columns, got %d", len(phase))
		}
		for _, c := range phase {
			if c < 0 || c >= meta.StateDim {
				return fmt.Errorf("column %d out of range [0, %d)", c, meta.StateDim)
			}
		}
		fmt.Printf("%s vs %s\n", columnLabel(meta, phase[1]), columnLabel(meta, phase[0]))
		fmt.Print(viz.PhasePlot(viz.Column(tr.States, phase[0]), viz.Column(tr.States, phase[1]), plotWidth/2, 20))
		return nil
	}

	cols := columns
	if len(cols) == 0 {
		for i := 0; i < min(meta.PositionSize, 6); i++ {
			cols = append(cols, i)
		}
	}
	chart, err := viz.PlotColumns(tr.States, cols, meta.Labels, viz.PlotOptions{Width: plotWidth, Height: 12})
	if err != nil {
		return err
	}
	fmt.Println(chart)

	if meta.ControlDim > 0 && meta.Controller != "" && meta.Controller != "none" {
		effort := make([]float64, len(tr.Controls))
		for i, u := range tr.Controls {
			effort[i] = floats.Norm(u, 2)
		}
		fmt.Println()
		fmt.Println(viz.PlotSeries("control effort |u|", effort, viz.PlotOptions{Width: plotWidth, Height: 6}))
	}
	return nil
}

func columnLabel(meta *storage.RunMetadata, i int) string {
	if i < len(meta.Labels) {
		return meta.Labels[i]
	}
	return fmt.Sprintf("x%d", i)
}

func exportRun(cmd *cobra.Command, args []string) error {
	runID := args[0]
	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	tr, err := st.LoadTrajectory(runID)
	if err != nil {
		return err
	}

	result := &sim.Result{
		Times:       tr.Times,
		States:      make([]sim.State, len(tr.States)),
		Controls:    make([]sim.Control, len(tr.Controls)),
		Metrics:     meta.Metrics,
		StepsTaken:  meta.Steps,
		EnergyDrift: meta.EnergyDrift,
	}
	for i, s := range tr.States {
		result.States[i] = s
	}
	for i, c := range tr.Controls {
		result.Controls[i] = c
	}

	if exportFormat != "json" && exportFormat != "csv" {
		return fmt.Errorf("unknown format %q (json, csv)", exportFormat)
	}
	if exportPath != "" {
		if err := storage.ExportFile(exportPath, exportFormat, *meta, result); err != nil {
			return err
		}
		fmt.Printf("exported %s to %s\n", runID, exportPath)
		return nil
	}
	if exportFormat == "csv" {
		return storage.WriteCSV(os.Stdout, *meta, result)
	}
	return storage.ExportJSON(os.Stdout, *meta, result)
}

func deleteRun(cmd *cobra.Command, args []string) error {
	if err := storage.New(dataDir).Delete(args[0]); err != nil {
		return err
	}
	fmt.Printf("deleted %s\n", args[0])
	return nil
}

func listPresets(cmd *cobra.Command, args []string) error {
	modelNames := config.Models()
	if len(args) > 0 {
		modelNames = args[:1]
	}
	for _, model := range modelNames {
		presets := config.ListPresets(model)
		if len(presets) == 0 {
			fmt.Printf("no presets for model: %s\n", model)
			continue
		}
		fmt.Printf("presets for %s:\n", model)
		for _, name := range presets {
			p := config.GetPreset(model, name)
			ctrl := ""
			if p.Controller != "" && p.Controller != "none" {
				ctrl = ", " + p.Controller
			}
			fmt.Printf("  %-10s %s, dt %g, %gs%s\n", name, p.Integrator, p.Dt, p.Duration, ctrl)
		}
	}
	return nil
}

func listModels(cmd *cobra.Command, args []string) error {
	reg := experiment.NewRegistry()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MODEL\tDESCRIPTION")
	for _, m := range reg.Models {
		fmt.Fprintf(w, "%s\t%s\n", m.Name, m.Summary)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\nmethods:     %s\n", strings.Join(reg.Methods, ", "))
	fmt.Printf("solvers:     %s\n", strings.Join(reg.Solvers, ", "))
	fmt.Printf("integrators: %s\n", strings.Join(reg.Integrators, ", "))
	fmt.Printf("controllers: %s\n", strings.Join(reg.Controllers, ", "))
	fmt.Printf("metrics:     %s\n", strings.Join(reg.Metrics, ", "))
	fmt.Printf("themes:      %s\n", strings.Join(viz.ThemeNames(), ", "))
	return nil
}
