// Package deployments records deployed contracts on disk, one JSON file per
// contract and network.
package deployments

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

var (
	ErrNotFound    = errors.New("deployments: no record")
	ErrInvalidName = errors.New("deployments: invalid network or contract name")
)

// Record is a deployed contract.
type Record struct {
	Contract        string          `json:"contract"`
	Address         string          `json:"address"`
	TxHash          string          `json:"transactionHash"`
	BlockNumber     uint64          `json:"blockNumber"`
	Deployer        string          `json:"deployer"`
	ChainID         uint64          `json:"chainId"`
	ConstructorArgs []string        `json:"args"`
	ABI             json.RawMessage `json:"abi,omitempty"`
	DeployedAt      time.Time       `json:"deployedAt"`
}

// Store keeps records under Dir/<network>/<Contract>.json.
type Store struct {
	Dir string
}

// NewStore returns a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{Dir: dir}
}

func (s *Store) path(network, contract string) (string, error) {
	for _, name := range []string{network, contract} {
		if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\:`) {
			return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
		}
	}
	return filepath.Join(s.Dir, network, contract+".json"), nil
}

// Save writes rec, replacing an earlier record of the same contract.
func (s *Store) Save(network string, rec Record) (string, error) {
	path, err := s.path(network, rec.Contract)
	if err != nil {
		return "", err
	}
	if rec.DeployedAt.IsZero() {
		rec.DeployedAt = time.Now().UTC()
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal record: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}

	// Write then rename so readers never see a partial record.
	tmp, err := os.CreateTemp(dir, "."+rec.Contract+"-*.json")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close record: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("save record: %w", err)
	}
	return path, nil
}

// Load reads the record of contract on network.
func (s *Store) Load(network, contract string) (*Record, error) {
	path, err := s.path(network, contract)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s on %s", ErrNotFound, contract, network)
	}
	if err != nil {
		return nil, fmt.Errorf("read record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &rec, nil
}

// List returns every record on network sorted by contract name. A network
// without deployments yields an empty list.
func (s *Store) List(network string) ([]Record, error) {
	if _, err := s.path(network, "_"); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(filepath.Join(s.Dir, network))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", network, err)
	}

	var records []Record
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != ".json" {
			continue
		}
		rec, err := s.Load(network, strings.TrimSuffix(name, ".json"))
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Contract < records[j].Contract })
	return records, nil
}
