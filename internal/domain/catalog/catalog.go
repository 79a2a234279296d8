package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/ilixi/ilixi-sub001/internal/shared/paths"
	"github.com/ilixi/ilixi-sub001/internal/shared/types"
)

// DefaultPattern matches every supported descriptor encoding
const DefaultPattern = "**/*.{appdef,toml,yaml,yml,json}"

const dataDirToken = "@DATADIR:"

// Options controls descriptor discovery and resolution
type Options struct {
	Pattern   string
	BinDir    string
	DataDir   string
	LookupEnv func(string) (string, bool)
}

// Catalog is the immutable table of application definitions
type Catalog struct {
	defs   []*types.AppDefinition
	byName map[string]*types.AppDefinition
	byID   map[uint32]*types.AppDefinition
}

// New builds a catalog from definitions that are already resolved. Ids are
// assigned in argument order when unset. Later duplicates are ignored.
func New(defs ...*types.AppDefinition) *Catalog {
	c := &Catalog{
		byName: make(map[string]*types.AppDefinition),
		byID:   make(map[uint32]*types.AppDefinition),
	}
	for _, d := range defs {
		c.add(d)
	}
	c.sort()
	return c
}

func (c *Catalog) add(d *types.AppDefinition) bool {
	if _, exists := c.byName[d.Name]; exists {
		return false
	}
	if d.ID == 0 {
		d.ID = uint32(len(c.defs) + 1)
	}
	c.defs = append(c.defs, d)
	c.byName[d.Name] = d
	c.byID[d.ID] = d
	return true
}

func (c *Catalog) sort() {
	sort.SliceStable(c.defs, func(i, j int) bool {
		return strings.ToLower(c.defs[i].Name) < strings.ToLower(c.defs[j].Name)
	})
}

// Load parses every descriptor under dir. Bad descriptors are logged and
// skipped; only an unreadable directory is an error.
func Load(dir string, opts Options, logger *zap.Logger) (*Catalog, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Pattern == "" {
		opts.Pattern = DefaultPattern
	}
	if opts.LookupEnv == nil {
		opts.LookupEnv = os.LookupEnv
	}

	info, err := os.Stat(dir)
	if err != nil {
		return New(), fmt.Errorf("apps directory: %w", err)
	}
	if !info.IsDir() {
		return New(), fmt.Errorf("apps directory: %s is not a directory", dir)
	}

	matches, err := doublestar.Glob(os.DirFS(dir), opts.Pattern)
	if err != nil {
		return New(), fmt.Errorf("match descriptors: %w", err)
	}

	c := New()
	res := &resolver{binDir: opts.BinDir, lookupEnv: opts.LookupEnv}
	var failed int

	for _, rel := range matches {
		path := filepath.Join(dir, rel)
		def, err := loadDescriptor(path, res, opts.DataDir, logger)
		if err != nil {
			logger.Warn("Dropping app descriptor", zap.String("file", rel), zap.Error(err))
			failed++
			continue
		}
		if !c.add(def) {
			logger.Warn("Duplicate app name, keeping first",
				zap.String("file", rel), zap.String("name", def.Name))
			failed++
			continue
		}
		logger.Debug("Loaded app", zap.String("name", def.Name), zap.String("path", def.Path))
	}

	c.sort()
	logger.Info("App catalog loaded", zap.Int("apps", len(c.defs)), zap.Int("dropped", failed))
	return c, nil
}

func loadDescriptor(path string, res *resolver, dataDir string, logger *zap.Logger) (*types.AppDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	d, err := decodeDescriptor(path, data)
	if err != nil {
		return nil, err
	}
	d.clean()

	if d.Name == "" {
		return nil, fmt.Errorf("missing name")
	}

	exe, err := res.resolve(d.Exec)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", d.Exec, err)
	}

	flags, unknown := types.ParseAppFlags(d.Flags)
	if len(unknown) > 0 {
		logger.Warn("Unknown app flags", zap.String("name", d.Name), zap.Strings("flags", unknown))
	}
	deps, unknown := types.ParseDepFlags(d.Deps)
	if len(unknown) > 0 {
		logger.Warn("Unknown dependency flags", zap.String("name", d.Name), zap.Strings("deps", unknown))
	}

	return &types.AppDefinition{
		Name:     d.Name,
		Author:   d.Author,
		Licence:  d.Licence,
		Category: d.Category,
		Version:  d.Version,
		Icon:     resolveIcon(d.Icon, dataDir, logger),
		Path:     exe,
		Args:     strings.TrimSpace(d.Args),
		Flags:    flags,
		Deps:     deps,
	}, nil
}

// resolveIcon expands the data dir token and clears icons that exist but are
// not images
func resolveIcon(icon, dataDir string, logger *zap.Logger) string {
	if icon == "" {
		return ""
	}
	if strings.HasPrefix(icon, dataDirToken) {
		icon = filepath.Join(paths.IconDir(dataDir), strings.TrimPrefix(icon, dataDirToken))
	}

	mime, err := mimetype.DetectFile(icon)
	if err != nil {
		return icon
	}
	if !strings.HasPrefix(mime.String(), "image/") {
		logger.Warn("Icon is not an image", zap.String("icon", icon), zap.String("mime", mime.String()))
		return ""
	}
	return icon
}

// Lookup returns the definition with the given name
func (c *Catalog) Lookup(name string) (*types.AppDefinition, bool) {
	d, ok := c.byName[name]
	return d, ok
}

// ByID returns the definition with the given numeric id
func (c *Catalog) ByID(id uint32) (*types.AppDefinition, bool) {
	d, ok := c.byID[id]
	return d, ok
}

// List returns every definition sorted by name. The slice is a copy.
func (c *Catalog) List() []*types.AppDefinition {
	out := make([]*types.AppDefinition, len(c.defs))
	copy(out, c.defs)
	return out
}

// Len returns the number of definitions
func (c *Catalog) Len() int {
	return len(c.defs)
}

// AutoStart returns the definitions flagged auto-start in catalog order
func (c *Catalog) AutoStart() []*types.AppDefinition {
	var out []*types.AppDefinition
	for _, d := range c.defs {
		if d.Flags.Has(types.AppAutoStart) {
			out = append(out, d)
		}
	}
	return out
}
