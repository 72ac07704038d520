package desktype

import (
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/deskctl/deskctl/internal/apperr"
	"github.com/deskctl/deskctl/internal/logging"
)

// Options configures type discovery.
type Options struct {
	TypePaths       []string
	GlobalStatePath string
	UserStatePath   string
	Privileged      bool
	Arch            string // Defaults to HostArch()
	Distro          string // Defaults to DetectDistro("/")
	DefaultName     string // Configured desktop_type
	Logger          *zap.Logger
}

// Registry holds the discovered desktop types in discovery order.
type Registry struct {
	opts   Options
	logger *zap.Logger
	types  []*Type
	byName map[string]*Type
}

// NewRegistry scans opts.TypePaths and returns the discovered types.
func NewRegistry(opts Options) *Registry {
	if opts.Arch == "" {
		opts.Arch = HostArch()
	}
	if opts.Distro == "" {
		opts.Distro = DetectDistro("/")
	}
	r := &Registry{opts: opts, logger: logging.OrNop(opts.Logger)}
	r.Rescan()
	return r
}

// Rescan rediscovers types. The first definition of a name wins; types that
// do not support the host architecture are skipped.
func (r *Registry) Rescan() {
	r.types = nil
	r.byName = make(map[string]*Type)

	for _, base := range r.opts.TypePaths {
		entries, err := os.ReadDir(base)
		if err != nil {
			r.logger.Debug("skipping type path", zap.String("path", base), zap.Error(err))
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			t, err := r.load(filepath.Join(base, entry.Name()))
			if err != nil {
				r.logger.Debug("skipping type", zap.String("dir", entry.Name()), zap.Error(err))
				continue
			}
			if _, dup := r.byName[t.Name]; dup {
				continue
			}
			if !t.SupportsArch(r.opts.Arch) {
				r.logger.Debug("type does not support host arch",
					zap.String("type", t.Name), zap.String("arch", r.opts.Arch))
				continue
			}
			r.types = append(r.types, t)
			r.byName[t.Name] = t
		}
	}
}

func (r *Registry) load(dir string) (*Type, error) {
	data, err := os.ReadFile(filepath.Join(dir, "metadata.yml"))
	if err != nil {
		return nil, err
	}
	var md Metadata
	if err := yaml.Unmarshal(data, &md); err != nil {
		return nil, err
	}
	if md.Name == "" {
		md.Name = filepath.Base(dir)
	}

	return &Type{
		Name:           md.Name,
		Summary:        md.Summary,
		URL:            md.URL,
		Default:        md.Default,
		Arch:           md.Arch,
		Hidden:         md.Hidden || strings.HasPrefix(filepath.Base(dir), "."),
		Dir:            dir,
		distro:         r.opts.Distro,
		globalStateDir: filepath.Join(r.opts.GlobalStatePath, md.Name),
		userStateDir:   filepath.Join(r.opts.UserStatePath, md.Name),
		privileged:     r.opts.Privileged,
	}, nil
}

// Get returns the named type.
func (r *Registry) Get(name string) (*Type, error) {
	if t, ok := r.byName[name]; ok {
		return t, nil
	}
	return nil, apperr.New(apperr.UnknownType, "unknown desktop type: %s", name)
}

// All returns every discovered type, hidden ones included.
func (r *Registry) All() []*Type {
	return append([]*Type(nil), r.types...)
}

// Visible returns the types that are not hidden.
func (r *Registry) Visible() []*Type {
	var out []*Type
	for _, t := range r.types {
		if !t.Hidden {
			out = append(out, t)
		}
	}
	return out
}

// Default picks the configured desktop_type, then the type flagged as
// default, then the first discovered type.
func (r *Registry) Default() (*Type, error) {
	if r.opts.DefaultName != "" {
		if t, ok := r.byName[r.opts.DefaultName]; ok {
			return t, nil
		}
		r.logger.Debug("configured default type not found", zap.String("type", r.opts.DefaultName))
	}
	for _, t := range r.types {
		if t.Default {
			return t, nil
		}
	}
	if len(r.types) > 0 {
		return r.types[0], nil
	}
	return nil, apperr.New(apperr.UnknownType, "no desktop types available")
}

// DetectDistro identifies the host distribution family from release files
// under root: "rhel", "debian", "ubuntu", "suse" or "".
func DetectDistro(root string) string {
	if fileExists(filepath.Join(root, "etc", "redhat-release")) {
		return "rhel"
	}
	if data, err := os.ReadFile(filepath.Join(root, "etc", "os-release")); err == nil {
		for _, line := range strings.Split(string(data), "\n") {
			if v, ok := strings.CutPrefix(line, "ID="); ok {
				switch id := strings.Trim(v, `"`); id {
				case "ubuntu", "debian":
					return id
				case "sles", "opensuse-leap", "opensuse-tumbleweed":
					return "suse"
				}
			}
		}
	}
	if fileExists(filepath.Join(root, "etc", "debian_version")) {
		return "debian"
	}
	return ""
}
