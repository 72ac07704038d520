package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/deskctl/deskctl/internal/apperr"
	"github.com/deskctl/deskctl/internal/proc"
)

// RootEnv overrides the installation root.
const RootEnv = "DESKCTL_ROOT"

// EnvPrefix is the prefix for environment overrides of config keys,
// e.g. DESKCTL_GEOMETRY=1280x1024.
const EnvPrefix = "DESKCTL"

var geometryPattern = regexp.MustCompile(`^[0-9]+x[0-9]+$`)

// Config represents the deskctl configuration
type Config struct {
	// Root is the installation root that relative paths resolve against.
	Root string `mapstructure:"-"`

	VNCPasswdProgram string   `mapstructure:"vnc_passwd_program"`
	VNCServerProgram string   `mapstructure:"vnc_server_program"`
	XRandrProgram    string   `mapstructure:"xrandr_program"`
	TypePaths        []string `mapstructure:"type_paths"`
	WebsockifyPaths  []string `mapstructure:"websockify_paths"`
	SessionPath      string   `mapstructure:"session_path"`
	BGImage          string   `mapstructure:"bg_image"`

	AccessHosts []string `mapstructure:"access_hosts"`
	AccessIP    string   `mapstructure:"access_ip"`
	AccessHost  string   `mapstructure:"access_host"`

	GlobalStatePath string `mapstructure:"global_state_path"`
	UserStatePath   string `mapstructure:"user_state_path"`
	GlobalLogPath   string `mapstructure:"global_log_path"`
	UserLogPath     string `mapstructure:"user_log_path"`

	SessionEnvPath     string `mapstructure:"session_env_path"`
	SessionEnvOverride bool   `mapstructure:"session_env_override"`

	Geometry     string        `mapstructure:"geometry"`
	DesktopType  string        `mapstructure:"desktop_type"`
	Timeout      int           `mapstructure:"timeout"`
	GrabInterval time.Duration `mapstructure:"grab_interval"`

	globalFile string
	userFile   string
}

// Load loads the global and user configuration files, layering environment
// overrides on top. Missing files are not an error. userFile overrides the
// default user config location when non-empty.
func Load(userFile string) (*Config, error) {
	home, err := homedir.Dir()
	if err != nil {
		return nil, err
	}
	return load(ResolveRoot(), home, userFile)
}

func load(root, home, userFile string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, root)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	globalFile := filepath.Join(root, "etc", "config.yml")
	if userFile == "" {
		userFile = filepath.Join(home, ".config", "deskctl", "config.yml")
	}

	// Global first so the user file wins on conflicts
	for _, path := range []string{globalFile, userFile} {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, err
		}
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.Root = root
	cfg.globalFile = globalFile
	cfg.userFile = userFile
	cfg.resolvePaths(home)

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper, root string) {
	// Programs
	v.SetDefault("vnc_passwd_program", "/usr/bin/vncpasswd")
	v.SetDefault("vnc_server_program", "libexec/vncserver")
	v.SetDefault("xrandr_program", "/usr/bin/xrandr")
	v.SetDefault("websockify_paths", []string{"/usr/bin/websockify", "/usr/local/bin/websockify"})

	// Locations
	v.SetDefault("type_paths", []string{"etc/types"})
	v.SetDefault("session_path", "~/.cache/deskctl/sessions")
	v.SetDefault("bg_image", "etc/assets/backgrounds/default.jpg")
	v.SetDefault("global_state_path", "var/lib/desktop")
	v.SetDefault("user_state_path", "~/.local/share/deskctl/state")
	v.SetDefault("global_log_path", "var/log/desktop")
	v.SetDefault("user_log_path", "~/.cache/deskctl/log")

	// Access
	v.SetDefault("access_hosts", []string{})
	v.SetDefault("access_ip", "")
	v.SetDefault("access_host", "")

	// Session behaviour
	v.SetDefault("session_env_path", "/usr/bin:/usr/sbin:/bin:/sbin")
	v.SetDefault("session_env_override", true)
	v.SetDefault("geometry", "1024x768")
	v.SetDefault("desktop_type", "")
	v.SetDefault("timeout", 2)
	v.SetDefault("grab_interval", 60*time.Second)
}

// resolvePaths expands ~ and anchors relative paths at the install root.
func (c *Config) resolvePaths(home string) {
	resolve := func(p string) string {
		if p == "" {
			return p
		}
		if p == "~" || len(p) > 1 && p[:2] == "~/" {
			return filepath.Join(home, p[1:])
		}
		if !filepath.IsAbs(p) {
			return filepath.Join(c.Root, p)
		}
		return p
	}

	c.VNCPasswdProgram = resolve(c.VNCPasswdProgram)
	c.VNCServerProgram = resolve(c.VNCServerProgram)
	c.XRandrProgram = resolve(c.XRandrProgram)
	c.SessionPath = resolve(c.SessionPath)
	c.BGImage = resolve(c.BGImage)
	c.GlobalStatePath = resolve(c.GlobalStatePath)
	c.UserStatePath = resolve(c.UserStatePath)
	c.GlobalLogPath = resolve(c.GlobalLogPath)
	c.UserLogPath = resolve(c.UserLogPath)
	for i, p := range c.TypePaths {
		c.TypePaths[i] = resolve(p)
	}
	for i, p := range c.WebsockifyPaths {
		c.WebsockifyPaths[i] = resolve(p)
	}
}

// ResolveRoot returns the installation root: $DESKCTL_ROOT, or the parent of
// the directory holding the running executable.
func ResolveRoot() string {
	if root := os.Getenv(RootEnv); root != "" {
		return root
	}
	exe, err := os.Executable()
	if err != nil {
		return "/opt/deskctl"
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(filepath.Dir(exe))
}

// GlobalFile returns the path of the global config file.
func (c *Config) GlobalFile() string { return c.globalFile }

// UserFile returns the path of the user config file.
func (c *Config) UserFile() string { return c.userFile }

// TimeoutDuration returns the external command timeout.
func (c *Config) TimeoutDuration() time.Duration {
	if c.Timeout <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.Timeout) * time.Second
}

// Privileged reports whether deskctl runs as root, which selects the global
// state and log directories.
func (c *Config) Privileged() bool {
	return os.Geteuid() == 0
}

// LogDir returns the directory for verify/prepare logs.
func (c *Config) LogDir() string {
	if c.Privileged() {
		return c.GlobalLogPath
	}
	return c.UserLogPath
}

// Functional reports whether the VNC programs deskctl depends on are
// present and executable.
func (c *Config) Functional() bool {
	return proc.IsExecutable(c.VNCPasswdProgram) && proc.IsExecutable(c.VNCServerProgram)
}

// AccessSummaryHost returns the configured access host name or address.
func (c *Config) AccessSummaryHost() string {
	if c.AccessHost != "" {
		return c.AccessHost
	}
	return c.AccessIP
}

// ValidateGeometry checks that g has the form WIDTHxHEIGHT.
func ValidateGeometry(g string) error {
	if !geometryPattern.MatchString(g) {
		return apperr.New(apperr.InvalidSetting, "invalid geometry: %s (expected WIDTHxHEIGHT)", g)
	}
	return nil
}

// SaveKey writes key=value into the global or user config file, creating
// the file and its directory when needed. Other keys are preserved.
func (c *Config) SaveKey(key string, value any, global bool) error {
	path := c.userFile
	if global {
		path = c.globalFile
	}
	if path == "" {
		return fmt.Errorf("no config file location for %s", key)
	}

	doc := map[string]any{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
		if doc == nil {
			doc = map[string]any{}
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	doc[key] = value

	out, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	if err := os.WriteFile(path, out, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
