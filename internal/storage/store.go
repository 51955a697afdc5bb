package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/san-kum/rbdyn/internal/logger"
	"github.com/san-kum/rbdyn/internal/sim"
)

const (
	metadataFile = "metadata.json"
	statesFile   = "states.csv"
)

var ErrRunNotFound = errors.New("storage: run not found")

// Store keeps one directory per run holding metadata.json and states.csv.
type Store struct {
	baseDir string
	now     func() time.Time
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir, now: time.Now}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID           string             `json:"id"`
	Model        string             `json:"model"`
	Description  string             `json:"description,omitempty"`
	Timestamp    time.Time          `json:"timestamp"`
	Seed         int64              `json:"seed"`
	Dt           float64            `json:"dt"`
	Duration     float64            `json:"duration"`
	Method       string             `json:"method"`
	Solver       string             `json:"solver"`
	Integrator   string             `json:"integrator"`
	Controller   string             `json:"controller"`
	PositionSize int                `json:"position_size"`
	StateDim     int                `json:"state_dim"`
	ControlDim   int                `json:"control_dim"`
	Labels       []string           `json:"labels,omitempty"`
	Steps        int                `json:"steps"`
	EnergyDrift  float64            `json:"energy_drift"`
	Metrics      map[string]float64 `json:"metrics"`
}

// Trajectory is a run read back from disk.
type Trajectory struct {
	Times    []float64
	States   [][]float64
	Controls [][]float64
}

// Save writes meta and result under a fresh run id and returns it. The
// state and control dimensions are taken from result when meta leaves
// them zero.
func (s *Store) Save(meta RunMetadata, result *sim.Result) (string, error) {
	now := s.now()
	meta.ID = fmt.Sprintf("%s_%s", meta.Model, now.Format("20060102-150405.000000"))
	meta.Timestamp = now
	meta.Steps = result.StepsTaken
	meta.EnergyDrift = result.EnergyDrift
	meta.Metrics = result.Metrics
	if meta.StateDim == 0 && len(result.States) > 0 {
		meta.StateDim = len(result.States[0])
	}
	if meta.ControlDim == 0 && len(result.Controls) > 0 {
		meta.ControlDim = len(result.Controls[0])
	}

	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	if err := writeFile(filepath.Join(runDir, metadataFile), func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(meta)
	}); err != nil {
		return "", err
	}

	if err := writeFile(filepath.Join(runDir, statesFile), func(w io.Writer) error {
		return WriteCSV(w, meta, result)
	}); err != nil {
		return "", err
	}

	logger.Log.Info("run saved", zap.String("id", meta.ID), zap.Int("rows", len(result.States)))
	return meta.ID, nil
}

// writeFile creates path, runs fn on it and reports the close error too.
func writeFile(path string, fn func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, f.Close()) }()
	return fn(f)
}

// WriteCSV writes one row per recorded state: time, the state entries and
// the control applied from that state. The last row has no control and
// repeats zeros.
func WriteCSV(w io.Writer, meta RunMetadata, result *sim.Result) error {
	if meta.ControlDim == 0 && len(result.Controls) > 0 {
		meta.ControlDim = len(result.Controls[0])
	}
	cw := csv.NewWriter(w)

	if len(result.States) > 0 {
		if err := cw.Write(header(meta, len(result.States[0]))); err != nil {
			return err
		}
	}

	for i := range result.States {
		row := []string{strconv.FormatFloat(result.Times[i], 'g', -1, 64)}
		for _, val := range result.States[i] {
			row = append(row, strconv.FormatFloat(val, 'g', -1, 64))
		}
		for j := 0; j < meta.ControlDim; j++ {
			val := 0.0
			if i < len(result.Controls) && j < len(result.Controls[i]) {
				val = result.Controls[i][j]
			}
			row = append(row, strconv.FormatFloat(val, 'g', -1, 64))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func header(meta RunMetadata, stateDim int) []string {
	h := []string{"time"}
	for i := 0; i < stateDim; i++ {
		if i < len(meta.Labels) {
			h = append(h, meta.Labels[i])
		} else {
			h = append(h, fmt.Sprintf("x%d", i))
		}
	}
	for i := 0; i < meta.ControlDim; i++ {
		h = append(h, fmt.Sprintf("u%d", i))
	}
	return h
}

// List returns the metadata of every readable run, oldest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			logger.Log.Debug("skipping run directory", zap.String("dir", entry.Name()), zap.Error(err))
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("%s: %w", runID, err)
	}
	return &meta, nil
}

// LoadTrajectory reads states.csv back, splitting each row into state
// and control by the dimensions recorded in the metadata.
func (s *Store) LoadTrajectory(runID string) (*Trajectory, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(filepath.Join(s.baseDir, runID, statesFile))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", runID, err)
	}

	tr := &Trajectory{}
	if len(records) < 2 {
		return tr, nil
	}

	for i, record := range records[1:] {
		if len(record) != 1+meta.StateDim+meta.ControlDim {
			return nil, fmt.Errorf("%s: row %d has %d fields, want %d", runID, i+1, len(record), 1+meta.StateDim+meta.ControlDim)
		}
		vals := make([]float64, len(record))
		for j, field := range record {
			if vals[j], err = strconv.ParseFloat(field, 64); err != nil {
				return nil, fmt.Errorf("%s: row %d: %w", runID, i+1, err)
			}
		}
		tr.Times = append(tr.Times, vals[0])
		tr.States = append(tr.States, vals[1:1+meta.StateDim])
		tr.Controls = append(tr.Controls, vals[1+meta.StateDim:])
	}
	return tr, nil
}

func (s *Store) Delete(runID string) error {
	dir := filepath.Join(s.baseDir, runID)
	if _, err := os.Stat(filepath.Join(dir, metadataFile)); err != nil {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return os.RemoveAll(dir)
}
