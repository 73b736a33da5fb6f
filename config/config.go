// Package config is responsible for setting the program config from
// the config file and command-line arguments.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"github.com/pterm/pterm"
	"github.com/spf13/viper"
	"github.com/urfave/cli/v2"
)

var appCfg = &App{}

var once sync.Once

var errInitFailed = errors.New(
	"unable to initialise Crono-Learn settings from the configuration file",
)

var (
	configDir      = "cronolearn"
	configFileName = "config.yml"
	dbFileName     = "cronolearn.db"
)

const (
	defaultWorkSeconds    = 1500 // 25 minutes
	defaultRestSeconds    = 300  // 5 minutes
	defaultReportInterval = 10   // ticks between progress writes
	defaultMaxActive      = 5
)

const (
	configWorkSeconds       = "work_secs"
	configRestSeconds       = "rest_secs"
	configTickInterval      = "tick_interval"
	configProgressInterval  = "progress_interval"
	configMaxActiveSessions = "max_active_sessions"
	configNotify            = "notify"
	configOwner             = "owner"
)

// App represents the program configuration derived from the config file
// and command-line arguments.
type App struct {
	PathToConfig      string        `json:"path_to_config"`
	PathToDB          string        `json:"path_to_db"`
	Owner             string        `json:"owner"`
	WorkSeconds       int           `json:"work_secs"`
	RestSeconds       int           `json:"rest_secs"`
	TickInterval      time.Duration `json:"tick_interval"`
	ProgressInterval  int           `json:"progress_interval"`
	MaxActiveSessions int           `json:"max_active_sessions"`
	Notify            bool          `json:"notify"`
	Verbose           bool          `json:"verbose"`
}

// Dir returns the application directory name used for config, data and
// log paths.
func Dir() string {
	return configDir
}

// DBFilePath returns the path to the session database.
func DBFilePath() string {
	return appCfg.PathToDB
}

func init() {
	if os.Getenv("CRONOLEARN_ENV") == "development" {
		configFileName = "config_dev.yml"
		dbFileName = "cronolearn_dev.db"
	}
}

// setDefaults sets the program's default configuration values.
func setDefaults() {
	viper.SetDefault(configWorkSeconds, defaultWorkSeconds)
	viper.SetDefault(configRestSeconds, defaultRestSeconds)
	viper.SetDefault(configTickInterval, time.Second)
	viper.SetDefault(configProgressInterval, defaultReportInterval)
	viper.SetDefault(configMaxActiveSessions, defaultMaxActive)
	viper.SetDefault(configNotify, true)
	viper.SetDefault(configOwner, "")
}

// initAppConfig initialises the application configuration, writing a
// default config file on first run.
func initAppConfig() error {
	viper.SetConfigName(configFileName)
	viper.SetConfigType("yaml")

	relPath := filepath.Join(configDir, configFileName)

	pathToConfigFile, err := xdg.ConfigFile(relPath)
	if err != nil {
		return err
	}

	appCfg.PathToConfig = pathToConfigFile

	viper.AddConfigPath(filepath.Dir(appCfg.PathToConfig))

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return viper.WriteConfigAs(appCfg.PathToConfig)
		}

		return err
	}

	return nil
}

func setAppConfig(ctx *cli.Context) error {
	pathToDB, err := xdg.DataFile(filepath.Join(configDir, dbFileName))
	if err != nil {
		return err
	}

	appCfg.PathToDB = pathToDB

	// set from the config file
	appCfg.WorkSeconds = viper.GetInt(configWorkSeconds)
	appCfg.RestSeconds = viper.GetInt(configRestSeconds)
	appCfg.TickInterval = viper.GetDuration(configTickInterval)
	appCfg.ProgressInterval = viper.GetInt(configProgressInterval)
	appCfg.MaxActiveSessions = viper.GetInt(configMaxActiveSessions)
	appCfg.Notify = viper.GetBool(configNotify)
	appCfg.Owner = viper.GetString(configOwner)

	// set from command-line arguments
	if ctx.String("owner") != "" {
		appCfg.Owner = ctx.String("owner")
	}

	if ctx.Uint("work") > 0 {
		appCfg.WorkSeconds = int(ctx.Uint("work"))
	}

	if ctx.Uint("rest") > 0 {
		appCfg.RestSeconds = int(ctx.Uint("rest"))
	}

	if ctx.Bool("disable-notification") {
		appCfg.Notify = false
	}

	appCfg.Verbose = ctx.Bool("verbose")

	if appCfg.Owner == "" {
		appCfg.Owner = defaultOwner()
	}

	return validate(appCfg)
}

// defaultOwner falls back to the OS user when no owner is configured.
func defaultOwner() string {
	for _, env := range []string{"USER", "USERNAME"} {
		if v := os.Getenv(env); v != "" {
			return v
		}
	}

	return "default"
}

// Get initializes and returns the application configuration. The
// initialization is done just once no matter how many times it is
// called.
func Get(ctx *cli.Context) *App {
	once.Do(func() {
		err := initAppConfig()
		if err == nil {
			err = setAppConfig(ctx)
		}

		if err != nil {
			pterm.Error.Printfln("%s: %s", errInitFailed.Error(), err.Error())
			os.Exit(1)
		}
	})

	return appCfg
}
