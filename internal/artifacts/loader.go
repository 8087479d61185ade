package artifacts

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var (
	ErrArtifactNotFound  = errors.New("artifacts: artifact not found (did you compile?)")
	ErrAmbiguousArtifact = errors.New("artifacts: contract name matches several artifacts; use <source>:<name>")
)

// Loader finds artifacts by contract name in a list of directories. Earlier
// directories win: a Hardhat artifacts/ directory shadows a Foundry out/.
type Loader struct {
	Dirs []string
}

// NewLoader creates a loader over dirs, ignoring empty entries.
func NewLoader(dirs ...string) *Loader {
	l := &Loader{}
	for _, d := range dirs {
		if d != "" {
			l.Dirs = append(l.Dirs, d)
		}
	}
	return l
}

// Find locates and loads the artifact for name. name is either a bare
// contract name ("Evaluator") or fully qualified
// ("contracts/Evaluator.sol:Evaluator").
func (l *Loader) Find(name string) (*Artifact, error) {
	source, contract := splitQualified(name)

	for _, dir := range l.Dirs {
		matches, err := l.scan(dir, source, contract)
		if err != nil {
			return nil, err
		}
		switch len(matches) {
		case 0:
			continue
		case 1:
			return LoadFile(matches[0])
		default:
			sort.Strings(matches)
			return nil, fmt.Errorf("%w: %s in %s", ErrAmbiguousArtifact, name, strings.Join(matches, ", "))
		}
	}

	return nil, fmt.Errorf("%w: %s (searched %s)", ErrArtifactNotFound, name, strings.Join(l.Dirs, ", "))
}

func (l *Loader) scan(dir, source, contract string) ([]string, error) {
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	want := contract + ".json"
	var matches []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "build-info" {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() != want {
			return nil
		}
		if source != "" && !fromSource(filepath.Dir(path), source) {
			return nil
		}
		matches = append(matches, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	return matches, nil
}

// fromSource reports whether an artifact directory belongs to source, e.g.
// artifacts/contracts/Evaluator.sol for contracts/Evaluator.sol.
func fromSource(dir, source string) bool {
	dir, source = filepath.ToSlash(dir), filepath.ToSlash(source)
	return dir == source || strings.HasSuffix(dir, "/"+source)
}

func splitQualified(name string) (source, contract string) {
	if i := strings.LastIndex(name, ":"); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}

// LoadFile reads a single artifact file in Hardhat or Foundry format.
func LoadFile(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}

	var artifact Artifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	artifact.Path = path
	if artifact.ContractName == "" {
		artifact.ContractName = strings.TrimSuffix(filepath.Base(path), ".json")
	}

	if artifact.Format == "" {
		// Foundry writes no _format marker; its compiler version lives in
		// the embedded metadata.
		artifact.Format = FormatFoundry
		var extra struct {
			Metadata json.RawMessage `json:"metadata"`
		}
		if err := json.Unmarshal(data, &extra); err == nil {
			artifact.CompilerVersion = metadataCompilerVersion(extra.Metadata)
		}
	} else {
		artifact.CompilerVersion = buildInfoCompilerVersion(path)
	}

	return &artifact, nil
}

// metadataCompilerVersion reads compiler.version from solc metadata, which is
// either an object or a JSON-encoded string.
func metadataCompilerVersion(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		raw = json.RawMessage(s)
	}
	var meta struct {
		Compiler struct {
			Version string `json:"version"`
		} `json:"compiler"`
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return ""
	}
	return meta.Compiler.Version
}

// buildInfoCompilerVersion follows Hardhat's <Name>.dbg.json to the build-info
// file and reads solcVersion from it.
func buildInfoCompilerVersion(artifactPath string) string {
	dbgPath := strings.TrimSuffix(artifactPath, ".json") + ".dbg.json"
	data, err := os.ReadFile(dbgPath)
	if err != nil {
		return ""
	}
	var dbg struct {
		BuildInfo string `json:"buildInfo"`
	}
	if err := json.Unmarshal(data, &dbg); err != nil || dbg.BuildInfo == "" {
		return ""
	}

	f, err := os.Open(filepath.Join(filepath.Dir(dbgPath), dbg.BuildInfo))
	if err != nil {
		return ""
	}
	defer f.Close()

	var info struct {
		SolcVersion string `json:"solcVersion"`
	}
	if err := json.NewDecoder(f).Decode(&info); err != nil {
		return ""
	}
	return info.SolcVersion
}
