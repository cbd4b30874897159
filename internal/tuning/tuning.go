// Package tuning loads the flat operational config for the nav
// service. Zero values fall back to defaults so a partial tuning.yaml
// is fine.
package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ListenAddr string `yaml:"listen_addr"`

	DataDir      string `yaml:"data_dir"`
	DBPath       string `yaml:"db_path"`
	SnapshotPath string `yaml:"snapshot_path"`
	BlocksPath   string `yaml:"blocks_path"`

	ChunkSize []int  `yaml:"chunk_size"`
	CellType  string `yaml:"cell_type"`

	Costs Costs `yaml:"costs"`

	NavWorkers      int `yaml:"nav_workers"`
	RouteDeadlineMs int `yaml:"route_deadline_ms"`
}

type Costs struct {
	Move        float64 `yaml:"move"`
	Turn        float64 `yaml:"turn"`
	TurnAround  float64 `yaml:"turn_around"`
	Obstruction float64 `yaml:"obstruction"`
}

func Default() Tuning {
	return Tuning{
		ListenAddr:      ":8080",
		DataDir:         "data/chunks",
		DBPath:          "data/index.db",
		SnapshotPath:    "data/world.snap",
		ChunkSize:       []int{16, 16, 16},
		CellType:        "i",
		NavWorkers:      4,
		RouteDeadlineMs: 5000,
	}
}

// Load reads tuning.yaml from path and fills unset fields from
// Default.
func Load(path string) (Tuning, error) {
	t := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t.normalized()
}

func (t Tuning) normalized() (Tuning, error) {
	d := Default()
	if t.ListenAddr == "" {
		t.ListenAddr = d.ListenAddr
	}
	if t.DataDir == "" {
		t.DataDir = d.DataDir
	}
	if t.DBPath == "" {
		t.DBPath = d.DBPath
	}
	if t.SnapshotPath == "" {
		t.SnapshotPath = d.SnapshotPath
	}
	if len(t.ChunkSize) == 0 {
		t.ChunkSize = d.ChunkSize
	}
	if len(t.ChunkSize) != 3 {
		return t, fmt.Errorf("tuning.yaml: chunk_size needs exactly 3 components, got %v", t.ChunkSize)
	}
	for _, c := range t.ChunkSize {
		if c <= 0 {
			return t, fmt.Errorf("tuning.yaml: chunk_size components must be positive, got %v", t.ChunkSize)
		}
	}
	if t.CellType == "" {
		t.CellType = d.CellType
	}
	if len(t.CellType) != 1 {
		return t, fmt.Errorf("tuning.yaml: cell_type must be a single character, got %q", t.CellType)
	}
	if t.NavWorkers <= 0 {
		t.NavWorkers = d.NavWorkers
	}
	if t.RouteDeadlineMs <= 0 {
		t.RouteDeadlineMs = d.RouteDeadlineMs
	}
	return t, nil
}
