// Package compiler drives a local solc binary and writes Hardhat-format
// artifacts from its combined JSON output.
package compiler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/filecoin-saturn/contracts/internal/artifacts"
)

var (
	ErrVersionMismatch = errors.New("compiler: installed solc does not match the configured version")
	ErrNoSources       = errors.New("compiler: no .sol sources found")
)

// Solc is a solc invocation configuration.
type Solc struct {
	Path     string // binary, default "solc"
	Version  string // expected version, e.g. 0.8.18
	Optimize bool
	Runs     int

	Logger *slog.Logger
}

func (s *Solc) binary() string {
	if s.Path == "" {
		return "solc"
	}
	return s.Path
}

func (s *Solc) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

var versionLine = regexp.MustCompile(`Version:\s*v?(\S+)`)

// InstalledVersion returns the long version string reported by solc --version, for
// example "0.8.18+commit.87f61d96.Linux.g++".
func (s *Solc) InstalledVersion(ctx context.Context) (string, error) {
	out, err := s.run(ctx, "", "--version")
	if err != nil {
		return "", err
	}
	m := versionLine.FindSubmatch(out)
	if m == nil {
		return "", fmt.Errorf("unexpected solc --version output: %q", strings.TrimSpace(string(out)))
	}
	return string(m[1]), nil
}

// combinedOutput is the document printed by solc --combined-json.
type combinedOutput struct {
	Contracts map[string]struct {
		ABI        json.RawMessage `json:"abi"`
		Bin        string          `json:"bin"`
		BinRuntime string          `json:"bin-runtime"`
		Metadata   string          `json:"metadata"`
	} `json:"contracts"`
	Version string `json:"version"`
}

// Compile compiles every .sol file under sourcesDir and writes one artifact
// per contract to artifactsDir/<source>/<Name>.json. Source names are
// relative to the parent of sourcesDir, so contracts/Evaluator.sol ends up in
// artifacts/contracts/Evaluator.sol/Evaluator.json.
func (s *Solc) Compile(ctx context.Context, sourcesDir, artifactsDir string) ([]*artifacts.Artifact, error) {
	root := filepath.Dir(filepath.Clean(sourcesDir))
	sources, err := findSources(root, sourcesDir)
	if err != nil {
		return nil, err
	}

	long, err := s.InstalledVersion(ctx)
	if err != nil {
		return nil, err
	}
	if s.Version != "" && !artifacts.SameVersion(long, s.Version) {
		return nil, fmt.Errorf("%w: %s reports %s, configured %s", ErrVersionMismatch, s.binary(), long, s.Version)
	}

	args := []string{"--combined-json", "abi,bin,bin-runtime,metadata", "--base-path", "."}
	if s.Optimize {
		runs := s.Runs
		if runs <= 0 {
			runs = 200
		}
		args = append(args, "--optimize", "--optimize-runs", strconv.Itoa(runs))
	}
	args = append(args, sources...)

	s.logger().Info("compiling",
		slog.String("solc", long),
		slog.Int("sources", len(sources)),
		slog.Bool("optimize", s.Optimize),
	)

	start := time.Now()
	out, err := s.run(ctx, root, args...)
	if err != nil {
		return nil, err
	}

	var combined combinedOutput
	if err := json.Unmarshal(out, &combined); err != nil {
		return nil, fmt.Errorf("parse solc output: %w", err)
	}

	written, err := writeArtifacts(&combined, long, artifactsDir)
	if err != nil {
		return nil, err
	}

	s.logger().Info("compiled",
		slog.Int("contracts", len(written)),
		slog.Duration("duration", time.Since(start)),
	)
	return written, nil
}

func (s *Solc) run(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, s.binary(), args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	s.logger().Debug("executing solc", slog.String("command", s.binary()), slog.Any("args", args))

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("solc failed: %w (stderr: %s)", err, strings.TrimSpace(stderr.String()))
	}
	if stderr.Len() > 0 {
		// Warnings only; errors make solc exit non-zero.
		s.logger().Warn("solc diagnostics", slog.String("output", strings.TrimSpace(stderr.String())))
	}
	return stdout.Bytes(), nil
}

// findSources lists .sol files below sourcesDir relative to root.
func findSources(root, sourcesDir string) ([]string, error) {
	var sources []string
	err := filepath.WalkDir(sourcesDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".sol" {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		sources = append(sources, filepath.ToSlash(rel))
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s does not exist", ErrNoSources, sourcesDir)
	}
	if err != nil {
		return nil, fmt.Errorf("scan sources: %w", err)
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoSources, sourcesDir)
	}
	sort.Strings(sources)
	return sources, nil
}

func writeArtifacts(combined *combinedOutput, long, artifactsDir string) ([]*artifacts.Artifact, error) {
	buildInfo, err := writeBuildInfo(artifactsDir, long)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(combined.Contracts))
	for key := range combined.Contracts {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	written := make([]*artifacts.Artifact, 0, len(keys))
	for _, key := range keys {
		c := combined.Contracts[key]
		i := strings.LastIndex(key, ":")
		if i < 0 {
			return nil, fmt.Errorf("unexpected contract key %q in solc output", key)
		}
		source, name := key[:i], key[i+1:]

		abiJSON, err := normalizeABI(c.ABI)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}

		a := &artifacts.Artifact{
			Format:           artifacts.FormatHardhat,
			ContractName:     name,
			SourceName:       source,
			ABI:              abiJSON,
			Bytecode:         artifacts.NewBytecode(c.Bin),
			DeployedBytecode: artifacts.NewBytecode(c.BinRuntime),
			LinkReferences:   json.RawMessage(`{}`),
			CompilerVersion:  long,
		}
		if a.Bytecode.String() == "" {
			a.Bytecode = artifacts.NewBytecode("0x")
			a.DeployedBytecode = artifacts.NewBytecode("0x")
		}

		dir := filepath.Join(artifactsDir, filepath.FromSlash(source))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create artifact dir: %w", err)
		}
		a.Path = filepath.Join(dir, name+".json")
		if err := writeJSON(a.Path, a); err != nil {
			return nil, err
		}

		rel, err := filepath.Rel(dir, buildInfo)
		if err != nil {
			return nil, err
		}
		dbg := map[string]string{"_format": "hh-sol-dbg-1", "buildInfo": filepath.ToSlash(rel)}
		if err := writeJSON(filepath.Join(dir, name+".dbg.json"), dbg); err != nil {
			return nil, err
		}

		written = append(written, a)
	}
	return written, nil
}

// normalizeABI accepts the ABI as a JSON array or, from older solc releases,
// as a string containing one.
func normalizeABI(raw json.RawMessage) (json.RawMessage, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		raw = json.RawMessage(s)
	}
	var probe []json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("abi is not a JSON array: %w", err)
	}
	return raw, nil
}

func writeBuildInfo(artifactsDir, long string) (string, error) {
	dir := filepath.Join(artifactsDir, "build-info")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create build-info dir: %w", err)
	}
	short := long
	if i := strings.IndexAny(short, "+-"); i >= 0 {
		short = short[:i]
	}
	path := filepath.Join(dir, "solc-"+short+".json")
	info := map[string]string{
		"_format":         "hh-sol-build-info-1",
		"solcVersion":     short,
		"solcLongVersion": long,
	}
	return path, writeJSON(path, info)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
