package storage

import (
	"encoding/json"
	"io"
	"os"

	"go.uber.org/multierr"

	"github.com/san-kum/rbdyn/internal/sim"
)

type ExportData struct {
	RunMetadata
	Times    []float64   `json:"times"`
	States   [][]float64 `json:"states"`
	Controls [][]float64 `json:"controls"`
}

func NewExportData(meta RunMetadata, result *sim.Result) ExportData {
	data := ExportData{
		RunMetadata: meta,
		Times:       result.Times,
		States:      make([][]float64, len(result.States)),
		Controls:    make([][]float64, len(result.Controls)),
	}
	data.Steps = result.StepsTaken
	data.EnergyDrift = result.EnergyDrift
	data.Metrics = result.Metrics

	for i, s := range result.States {
		data.States[i] = s
	}
	for i, c := range result.Controls {
		data.Controls[i] = c
	}
	return data
}

// ExportJSON writes the full run as indented JSON.
func ExportJSON(w io.Writer, meta RunMetadata, result *sim.Result) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(NewExportData(meta, result))
}

// ExportFile writes JSON or CSV to path depending on format.
func ExportFile(path, format string, meta RunMetadata, result *sim.Result) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, file.Close()) }()

	if format == "csv" {
		return WriteCSV(file, meta, result)
	}
	return ExportJSON(file, meta, result)
}
