// Package config provides centralized configuration for the pulsecheck harness.
// It loads configuration from CLI flags and environment variables, validates
// required fields, and provides sensible defaults.
//
// Flags select what to run (-scenario, -file) and override the most common
// settings. Environment variables carry everything else, including the S3
// credentials used when artifacts are mirrored to a bucket.
package config

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultBaseURL       = "http://localhost:3000"
	defaultViewport      = "1280x720"
	defaultPermissions   = "camera"
	defaultOutputDir     = "./verification"
	defaultBrowser       = "chromium"
	defaultPassword      = "password123"
	defaultActionTimeout = 15 * time.Second
	defaultNavTimeout    = 30 * time.Second
	defaultS3Region      = "auto"
	defaultS3Prefix      = "pulsecheck"
)

// Config holds all harness configuration.
type Config struct {
	// Target
	BaseURL string

	// What to run
	Scenario     string // built-in journey name
	ScenarioFile string // YAML scenario path; wins over Scenario

	// Browser session
	Browser         string // chromium, firefox, webkit
	Headless        bool
	ViewportWidth   int
	ViewportHeight  int
	Permissions     []string
	ActionTimeout   time.Duration
	NavTimeout      time.Duration
	InstallBrowsers bool
	TagRequests     bool // send the run ID header on every browser request

	// Journey inputs
	Password   string
	LabelsFile string // YAML overrides for the UI text journeys look for

	// Artifacts
	OutputDir string

	// Optional S3 mirror for artifacts
	UploadS3           bool
	AWSEndpointS3      string // AWS_ENDPOINT_URL_S3
	AWSRegion          string // AWS_REGION
	AWSAccessKeyID     string // AWS_ACCESS_KEY_ID
	AWSSecretAccessKey string // AWS_SECRET_ACCESS_KEY
	AWSBucketName      string // BUCKET_NAME
	S3Prefix           string // PULSECHECK_S3_PREFIX
	S3PublicURL        string // PULSECHECK_S3_PUBLIC_URL, base of reported artifact links
	S3PublicRead       bool   // PULSECHECK_S3_PUBLIC_READ

	Verbose bool
}

// Flags holds values parsed from the command line. Empty/zero fields do not
// override the environment.
type Flags struct {
	Scenario     string
	ScenarioFile string
	LabelsFile   string
	BaseURL      string
	Viewport     string
	Permissions  string
	OutputDir    string
	Headed       bool
	Install      bool
	TagRequests  bool
	UploadS3     bool
	Verbose      bool

	permissionsSet bool
}

// ValidationError represents a configuration validation error with multiple issues.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// ParseFlags parses CLI flags from args (normally os.Args[1:]).
func ParseFlags(args []string) (Flags, error) {
	var f Flags
	fs := flag.NewFlagSet("pulsecheck", flag.ContinueOnError)
	fs.StringVar(&f.Scenario, "scenario", "", "Built-in journey to run (student-benchmark, learn-top)")
	fs.StringVar(&f.ScenarioFile, "file", "", "Path to a YAML scenario file (overrides -scenario)")
	fs.StringVar(&f.LabelsFile, "labels", "", "YAML file overriding the UI labels built-in journeys match (overrides PULSECHECK_LABELS)")
	fs.StringVar(&f.BaseURL, "base-url", "", "Base URL of the application under test (overrides PULSECHECK_BASE_URL)")
	fs.StringVar(&f.Viewport, "viewport", "", "Viewport as WIDTHxHEIGHT (overrides PULSECHECK_VIEWPORT)")
	fs.Func("permissions", "Comma-separated browser permissions to grant; empty grants none (overrides PULSECHECK_PERMISSIONS)", func(v string) error {
		f.Permissions = v
		f.permissionsSet = true
		return nil
	})
	fs.StringVar(&f.OutputDir, "out", "", "Directory for screenshots (overrides PULSECHECK_OUTPUT_DIR)")
	fs.BoolVar(&f.Headed, "headed", false, "Show the browser window")
	fs.BoolVar(&f.Install, "install", false, "Install the Playwright driver and browser before running")
	fs.BoolVar(&f.TagRequests, "tag-requests", false, "Send the run ID as X-Pulsecheck-Run on every browser request")
	fs.BoolVar(&f.UploadS3, "s3", false, "Mirror screenshots to S3 (requires AWS_* and BUCKET_NAME)")
	fs.BoolVar(&f.Verbose, "v", false, "Debug-level structured logs on stderr")
	if err := fs.Parse(args); err != nil {
		return Flags{}, err
	}
	return f, nil
}

// LoadConfig loads configuration from environment variables and applies flag
// overrides, then validates the result.
func LoadConfig(f Flags) (*Config, error) {
	cfg := &Config{}
	var errs []string

	cfg.BaseURL = strings.TrimSuffix(getEnvOrDefault("PULSECHECK_BASE_URL", defaultBaseURL), "/")
	if f.BaseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(strings.TrimSpace(f.BaseURL), "/")
	}

	cfg.Scenario = strings.TrimSpace(f.Scenario)
	cfg.ScenarioFile = strings.TrimSpace(f.ScenarioFile)

	cfg.Browser = strings.ToLower(getEnvOrDefault("PULSECHECK_BROWSER", defaultBrowser))
	cfg.Headless = parseBoolOrDefault("PULSECHECK_HEADLESS", true, &errs)
	if f.Headed {
		cfg.Headless = false
	}

	viewport := getEnvOrDefault("PULSECHECK_VIEWPORT", defaultViewport)
	if f.Viewport != "" {
		viewport = f.Viewport
	}
	w, h, err := ParseViewport(viewport)
	if err != nil {
		errs = append(errs, err.Error())
	}
	cfg.ViewportWidth, cfg.ViewportHeight = w, h

	permissions, ok := os.LookupEnv("PULSECHECK_PERMISSIONS")
	if !ok {
		permissions = defaultPermissions
	}
	if f.permissionsSet {
		permissions = f.Permissions
	}
	cfg.Permissions = splitList(permissions)

	cfg.ActionTimeout = parseDurationOrDefault("PULSECHECK_ACTION_TIMEOUT", defaultActionTimeout, &errs)
	cfg.NavTimeout = parseDurationOrDefault("PULSECHECK_NAV_TIMEOUT", defaultNavTimeout, &errs)
	cfg.InstallBrowsers = parseBoolOrDefault("PULSECHECK_INSTALL_BROWSERS", false, &errs) || f.Install
	cfg.TagRequests = parseBoolOrDefault("PULSECHECK_TAG_REQUESTS", false, &errs) || f.TagRequests

	cfg.Password = getEnvOrDefault("PULSECHECK_PASSWORD", defaultPassword)
	cfg.LabelsFile = getEnvOrDefault("PULSECHECK_LABELS", "")
	if f.LabelsFile != "" {
		cfg.LabelsFile = strings.TrimSpace(f.LabelsFile)
	}

	cfg.OutputDir = getEnvOrDefault("PULSECHECK_OUTPUT_DIR", defaultOutputDir)
	if f.OutputDir != "" {
		cfg.OutputDir = strings.TrimSpace(f.OutputDir)
	}

	cfg.UploadS3 = f.UploadS3 || parseBoolOrDefault("PULSECHECK_S3", false, &errs)
	cfg.AWSEndpointS3 = strings.TrimSpace(os.Getenv("AWS_ENDPOINT_URL_S3"))
	cfg.AWSRegion = getEnvOrDefault("AWS_REGION", defaultS3Region)
	cfg.AWSAccessKeyID = strings.TrimSpace(os.Getenv("AWS_ACCESS_KEY_ID"))
	cfg.AWSSecretAccessKey = strings.TrimSpace(os.Getenv("AWS_SECRET_ACCESS_KEY"))
	cfg.AWSBucketName = strings.TrimSpace(os.Getenv("BUCKET_NAME"))
	cfg.S3Prefix = strings.Trim(getEnvOrDefault("PULSECHECK_S3_PREFIX", defaultS3Prefix), "/")
	cfg.S3PublicURL = strings.TrimSpace(os.Getenv("PULSECHECK_S3_PUBLIC_URL"))
	cfg.S3PublicRead = parseBoolOrDefault("PULSECHECK_S3_PUBLIC_READ", false, &errs)

	cfg.Verbose = f.Verbose || parseBoolOrDefault("PULSECHECK_VERBOSE", false, &errs)

	if err := cfg.Validate(); err != nil {
		var validationErr *ValidationError
		if errors.As(err, &validationErr) {
			validationErr.Errors = append(errs, validationErr.Errors...)
			return nil, validationErr
		}
		return nil, err
	}
	if len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}
	return cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	var errs []string

	if c.BaseURL == "" {
		errs = append(errs, "PULSECHECK_BASE_URL is required")
	} else if u, err := url.Parse(c.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Sprintf("PULSECHECK_BASE_URL must be an absolute http(s) URL, got %q", c.BaseURL))
	}

	switch c.Browser {
	case "chromium", "firefox", "webkit":
	default:
		errs = append(errs, fmt.Sprintf("PULSECHECK_BROWSER must be chromium, firefox or webkit, got %q", c.Browser))
	}

	if c.ViewportWidth < 0 || c.ViewportHeight < 0 {
		errs = append(errs, "viewport dimensions must be positive")
	}
	if c.ActionTimeout <= 0 {
		errs = append(errs, "PULSECHECK_ACTION_TIMEOUT must be positive")
	}
	if c.NavTimeout <= 0 {
		errs = append(errs, "PULSECHECK_NAV_TIMEOUT must be positive")
	}
	if c.OutputDir == "" {
		errs = append(errs, "PULSECHECK_OUTPUT_DIR must not be empty")
	}

	if c.UploadS3 {
		if c.AWSBucketName == "" {
			errs = append(errs, "BUCKET_NAME is required when S3 upload is enabled")
		}
		if c.AWSAccessKeyID == "" {
			errs = append(errs, "AWS_ACCESS_KEY_ID is required when S3 upload is enabled")
		}
		if c.AWSSecretAccessKey == "" {
			errs = append(errs, "AWS_SECRET_ACCESS_KEY is required when S3 upload is enabled")
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// PrintStartupSummary prints a human-readable summary of the configuration to stderr.
func (c *Config) PrintStartupSummary() {
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "pulsecheck starting...")

	target := c.Scenario
	if c.ScenarioFile != "" {
		target = c.ScenarioFile
	}
	fmt.Fprintf(os.Stderr, "  Scenario: %s\n", target)
	fmt.Fprintf(os.Stderr, "  Target:   %s\n", c.BaseURL)

	mode := "headless"
	if !c.Headless {
		mode = "headed"
	}
	fmt.Fprintf(os.Stderr, "  Browser:  %s (%s, %dx%d)\n", c.Browser, mode, c.ViewportWidth, c.ViewportHeight)
	if len(c.Permissions) == 0 {
		fmt.Fprintln(os.Stderr, "  Grants:   none")
	} else {
		fmt.Fprintf(os.Stderr, "  Grants:   %s\n", strings.Join(c.Permissions, ", "))
	}
	fmt.Fprintf(os.Stderr, "  Timeouts: action %s, navigation %s\n", c.ActionTimeout, c.NavTimeout)

	if c.UploadS3 {
		fmt.Fprintf(os.Stderr, "  Output:   %s + s3://%s/%s\n", c.OutputDir, c.AWSBucketName, c.S3Prefix)
	} else {
		fmt.Fprintf(os.Stderr, "  Output:   %s\n", c.OutputDir)
	}
	fmt.Fprintln(os.Stderr, "")
}

// ParseViewport parses "WIDTHxHEIGHT".
func ParseViewport(value string) (int, int, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(value)), "x")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("viewport must look like 1280x720, got %q", value)
	}
	w, errW := strconv.Atoi(strings.TrimSpace(parts[0]))
	h, errH := strconv.Atoi(strings.TrimSpace(parts[1]))
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("viewport must look like 1280x720, got %q", value)
	}
	return w, h, nil
}

// Helper functions for parsing environment variables

func getEnvOrDefault(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

// parseBoolOrDefault reads a boolean variable. A malformed value is reported
// in problems and the default is used.
func parseBoolOrDefault(key string, defaultValue bool, problems *[]string) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		*problems = append(*problems, fmt.Sprintf("%s must be true or false, got %q", key, value))
		return defaultValue
	}
	return parsed
}

// parseDurationOrDefault reads a duration variable such as "15s". A malformed
// value, including a bare number, is reported in problems.
func parseDurationOrDefault(key string, defaultValue time.Duration, problems *[]string) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		*problems = append(*problems, fmt.Sprintf("%s must be a duration like 15s, got %q", key, value))
		return defaultValue
	}
	return parsed
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
