package catalogs

import (
	"bytes"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"paranoia.ai/internal/sim/director/interest"
	"paranoia.ai/internal/sim/director/threats"
	"paranoia.ai/internal/sim/effects"
)

//go:embed threats/*.json
var builtin embed.FS

//go:embed schema/threat.schema.json
var threatSchemaJSON []byte

const threatSchemaURL = "threat.schema.json"

type ThreatCatalog struct {
	Defs   []threats.Definition
	ByID   map[string]threats.Definition
	Files  []string
	Digest string
}

// ThreatFile is the on-disk form of a threat definition.
type ThreatFile struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	MinInterval int        `json:"min_interval"`
	MaxInterval int        `json:"max_interval"`
	Target      string     `json:"target"`
	Steps       []StepFile `json:"steps"`
}

type StepFile struct {
	Name     string             `json:"name"`
	Priority interest.Priority  `json:"priority"`
	Message  string             `json:"message"`
	Features interest.Partial   `json:"features"`
	Effects  []effects.Template `json:"effects,omitempty"`
}

func (f ThreatFile) Definition() (threats.Definition, error) {
	rule, err := threats.ParseTargetRule(f.Target)
	if err != nil {
		return threats.Definition{}, fmt.Errorf("threat %s: %w", f.ID, err)
	}
	d := threats.Definition{
		ID:          f.ID,
		Name:        f.Name,
		MinInterval: f.MinInterval,
		MaxInterval: f.MaxInterval,
		Target:      rule,
		Steps:       make([]threats.Step, 0, len(f.Steps)),
	}
	for _, s := range f.Steps {
		d.Steps = append(d.Steps, threats.Step{
			Name:     s.Name,
			Priority: s.Priority,
			Message:  s.Message,
			Effects:  s.Effects,
			Features: s.Features,
		})
	}
	return d, d.Validate()
}

// Defaults returns the built-in threat set.
func Defaults() (*ThreatCatalog, error) {
	sub, err := fs.Sub(builtin, "threats")
	if err != nil {
		return nil, err
	}
	return LoadFS(sub)
}

// LoadThreats reads every *.json under dir. An empty dir means the built-in
// set; a missing directory yields an empty catalog.
func LoadThreats(dir string) (*ThreatCatalog, error) {
	if dir == "" {
		return Defaults()
	}
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return &ThreatCatalog{ByID: map[string]threats.Definition{}, Digest: sha256Hex(nil)}, nil
		}
		return nil, err
	}
	return LoadFS(os.DirFS(dir))
}

// Load reads threats from <configDir>/threats.
func Load(configDir string) (*ThreatCatalog, error) {
	if configDir == "" {
		return Defaults()
	}
	return LoadThreats(filepath.Join(configDir, "threats"))
}

func LoadFS(fsys fs.FS) (*ThreatCatalog, error) {
	schema, err := compileThreatSchema()
	if err != nil {
		return nil, err
	}

	var files []string
	err = fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(d.Name(), ".json") {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	out := &ThreatCatalog{ByID: map[string]threats.Definition{}, Files: files}
	var concat bytes.Buffer
	for _, p := range files {
		b, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, err
		}
		concat.Write(b)
		concat.WriteByte('\n')

		var doc any
		if err := json.Unmarshal(b, &doc); err != nil {
			return nil, fmt.Errorf("threat %s: %w", path.Base(p), err)
		}
		if err := schema.Validate(doc); err != nil {
			return nil, fmt.Errorf("threat %s: %w", path.Base(p), err)
		}
		var tf ThreatFile
		if err := json.Unmarshal(b, &tf); err != nil {
			return nil, fmt.Errorf("threat %s: %w", path.Base(p), err)
		}
		def, err := tf.Definition()
		if err != nil {
			return nil, fmt.Errorf("threat %s: %w", path.Base(p), err)
		}
		if _, dup := out.ByID[def.ID]; dup {
			return nil, fmt.Errorf("threat %s: duplicate id %s", path.Base(p), def.ID)
		}
		out.ByID[def.ID] = def
		out.Defs = append(out.Defs, def)
	}
	sort.Slice(out.Defs, func(i, j int) bool { return out.Defs[i].ID < out.Defs[j].ID })
	out.Digest = sha256Hex(concat.Bytes())
	return out, nil
}

func compileThreatSchema() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(threatSchemaURL, bytes.NewReader(threatSchemaJSON)); err != nil {
		return nil, fmt.Errorf("threat schema: %w", err)
	}
	s, err := c.Compile(threatSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("threat schema: %w", err)
	}
	return s, nil
}

var ErrEmpty = errors.New("threat catalog is empty")

// RequireNonEmpty is used by binaries that cannot run without threats.
func (c *ThreatCatalog) RequireNonEmpty() error {
	if c == nil || len(c.Defs) == 0 {
		return ErrEmpty
	}
	return nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
