package common

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// CommonFlags contains flags that are shared across commands
type CommonFlags struct {
	// Environment and configuration
	EnvFile     *string
	ConfigFile  *string
	Profile     *string
	DataRoot    *string
	ConsoleOnly *bool

	// Logging and output
	LogLevel *string
	LogDir   *string
	Silent   *bool
	NoEmojis *bool

	// Help and version
	Version *bool
	Help    *bool
}

// RegisterCommonFlags registers common flags on fs
func RegisterCommonFlags(fs *flag.FlagSet) *CommonFlags {
	return &CommonFlags{
		EnvFile:     fs.String("env", ".env", "Environment file path"),
		ConfigFile:  fs.String("config", "", "Engine config file (yaml or json)"),
		Profile:     fs.String("profile", "", "Risk profile override (conservative, moderate, aggressive)"),
		DataRoot:    fs.String("data-root", "data", "Data root directory"),
		ConsoleOnly: fs.Bool("console-only", false, "Console output only (no file output)"),

		LogLevel: fs.String("log-level", "info", "Log level (debug, info, warn, error)"),
		LogDir:   fs.String("log-dir", "", "Directory for session log files"),
		Silent:   fs.Bool("silent", false, "Enable silent mode (minimal output)"),
		NoEmojis: fs.Bool("no-emojis", false, "Disable emoji output"),

		Version: fs.Bool("version", false, "Show version information"),
		Help:    fs.Bool("help", false, "Show help information"),
	}
}

// FlagValidator provides flag validation utilities
type FlagValidator struct {
	errors []string
}

// NewFlagValidator creates a new flag validator
func NewFlagValidator() *FlagValidator {
	return &FlagValidator{
		errors: make([]string, 0),
	}
}

// ValidateFloat validates a float flag value
func (v *FlagValidator) ValidateFloat(name string, value float64, min, max float64) *FlagValidator {
	if value < min || value > max {
		v.errors = append(v.errors, fmt.Sprintf("%s must be between %.4f and %.4f, got: %.4f", name, min, max, value))
	}
	return v
}

// ValidateInt validates an int flag value
func (v *FlagValidator) ValidateInt(name string, value int, min, max int) *FlagValidator {
	if value < min || value > max {
		v.errors = append(v.errors, fmt.Sprintf("%s must be between %d and %d, got: %d", name, min, max, value))
	}
	return v
}

// ValidateChoice validates that a string is one of the allowed choices.
// An empty value passes when allowEmpty is set.
func (v *FlagValidator) ValidateChoice(name, value string, choices []string, allowEmpty bool) *FlagValidator {
	if value == "" && allowEmpty {
		return v
	}
	for _, choice := range choices {
		if value == choice {
			return v
		}
	}
	v.errors = append(v.errors, fmt.Sprintf("%s must be one of [%s], got: %s", name, strings.Join(choices, ", "), value))
	return v
}

// ValidateFile validates that a file exists
func (v *FlagValidator) ValidateFile(name, path string, required bool) *FlagValidator {
	if path == "" {
		if required {
			v.errors = append(v.errors, fmt.Sprintf("%s is required", name))
		}
		return v
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		v.errors = append(v.errors, fmt.Sprintf("%s file does not exist: %s", name, path))
	} else if err == nil && info.IsDir() {
		v.errors = append(v.errors, fmt.Sprintf("%s is a directory: %s", name, path))
	}
	return v
}

// ValidateDirectory validates that a directory exists
func (v *FlagValidator) ValidateDirectory(name, path string, required bool) *FlagValidator {
	if path == "" {
		if required {
			v.errors = append(v.errors, fmt.Sprintf("%s is required", name))
		}
		return v
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		v.errors = append(v.errors, fmt.Sprintf("%s directory does not exist: %s", name, path))
	} else if err == nil && !info.IsDir() {
		v.errors = append(v.errors, fmt.Sprintf("%s is not a directory: %s", name, path))
	}
	return v
}

// AddError adds a custom validation error
func (v *FlagValidator) AddError(message string) *FlagValidator {
	v.errors = append(v.errors, message)
	return v
}

// HasErrors returns true if there are validation errors
func (v *FlagValidator) HasErrors() bool {
	return len(v.errors) > 0
}

// GetErrors returns all validation errors
func (v *FlagValidator) GetErrors() []string {
	return v.errors
}

// GetError returns a formatted error message with all validation errors
func (v *FlagValidator) GetError() error {
	if len(v.errors) == 0 {
		return nil
	}
	if len(v.errors) == 1 {
		return fmt.Errorf("validation error: %s", v.errors[0])
	}
	return fmt.Errorf("validation errors:\n  - %s", strings.Join(v.errors, "\n  - "))
}

// PrintErrors prints all validation errors
func (v *FlagValidator) PrintErrors() {
	if len(v.errors) == 0 {
		return
	}
	fmt.Fprintf(os.Stderr, "❌ Flag validation errors:\n")
	for _, err := range v.errors {
		fmt.Fprintf(os.Stderr, "   • %s\n", err)
	}
}

// UsageFormatter provides utilities for formatting flag usage
type UsageFormatter struct {
	AppName        string
	AppDescription string
	Examples       []UsageExample
}

// UsageExample represents a usage example
type UsageExample struct {
	Command     string
	Description string
}

// NewUsageFormatter creates a new usage formatter
func NewUsageFormatter(appName, description string) *UsageFormatter {
	return &UsageFormatter{
		AppName:        appName,
		AppDescription: description,
		Examples:       make([]UsageExample, 0),
	}
}

// AddExample adds a usage example
func (u *UsageFormatter) AddExample(command, description string) *UsageFormatter {
	u.Examples = append(u.Examples, UsageExample{
		Command:     command,
		Description: description,
	})
	return u
}

// PrintUsage prints formatted usage information for fs
func (u *UsageFormatter) PrintUsage(fs *flag.FlagSet) {
	fmt.Printf("%s - %s\n\n", u.AppName, u.AppDescription)

	fmt.Printf("USAGE:\n")
	fmt.Printf("  %s [OPTIONS]\n\n", filepath.Base(os.Args[0]))

	if len(u.Examples) > 0 {
		fmt.Printf("EXAMPLES:\n")
		for _, example := range u.Examples {
			fmt.Printf("  # %s\n", example.Description)
			fmt.Printf("  %s\n\n", example.Command)
		}
	}

	fmt.Printf("OPTIONS:\n")
	fs.SetOutput(os.Stdout)
	fs.PrintDefaults()
}

// CheckHelpAndVersion handles -help and -version; true means exit now
func CheckHelpAndVersion(appName string, fs *flag.FlagSet, commonFlags *CommonFlags, formatter *UsageFormatter) bool {
	if *commonFlags.Version {
		PrintVersion(appName)
		return true
	}
	if *commonFlags.Help {
		formatter.PrintUsage(fs)
		return true
	}
	return false
}

// SetupLogger configures the default CLI logger based on common flags
func SetupLogger(commonFlags *CommonFlags) {
	logger := DefaultLogger
	if *commonFlags.Silent {
		logger.SetSilentMode(true)
	}
	if strings.EqualFold(*commonFlags.LogLevel, "debug") {
		logger.Level = LogLevelDebug
	}
	if *commonFlags.NoEmojis {
		logger.ShowEmojis = false
	}
}
