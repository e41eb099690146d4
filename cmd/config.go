package cmd

import (
	"errors"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	configVersionKey     = "version"
	currentConfigVersion = 1

	configBaseName   = "faultline"
	configFileName   = configBaseName + ".yaml"
	configFolderPath = "."

	outputFlagName       = "output"
	noCacheFlagName      = "no-cache"
	runParallelFlagName  = "parallel"
	formulaFlagName      = "formula"
	topKFlagName         = "top-k"
	noOppositeFlagName   = "no-opposite"
	maxLocationsFlagName = "max-locations"
	testSelectorFlagName = "run"
	metricsFlagName      = "metrics"

	runParallelConfigKey     = "run.parallel"
	buildTimeoutKey          = "run.build_timeout"
	testTimeoutKey           = "run.test_timeout"
	formulaConfigKey         = "run.formula"
	predicateSourceKey       = "predicates.source"
	predicateFileKey         = "predicates.file"
	topKConfigKey            = "predicates.top_k"
	noOppositeConfigKey      = "predicates.no_opposite"
	maxLocationsConfigKey    = "predicates.max_locations"
	predicateRateLimitKey    = "predicates.rate_limit"
	openAIBaseURLKey         = "predicates.openai.base_url"
	openAIModelKey           = "predicates.openai.model"
	openAIAPIKeyKey          = "predicates.openai.api_key"
	storePathKey             = "store.path"
	metricsPathConfigKey     = "metrics.path"
	defaultBuildTimeout      = time.Minute * 5
	defaultTestTimeout       = time.Minute * 10
	defaultFormula           = "ochiai"
	defaultPredicateSource   = "heuristic"
	defaultTopK              = 10
	defaultMaxLocations      = 10
	defaultPredicateRate     = 1.0
	defaultOpenAIModel       = "gpt-4o-mini"
	defaultStoreFileName     = "predicates.db"
	defaultReportsDir        = ".faultline-reports"
	defaultNoCache           = false
	defaultRunParallel       = 1
	predicateSourceNone      = "none"
	predicateSourceHeuristic = "heuristic"
	predicateSourceFile      = "file"
	predicateSourceOpenAI    = "openai"

	envPrefix = "FAULTLINE"

	logFilenameKey   = "log.filename"
	logLevelKey      = "log.level"
	logVerboseKey    = "log.verbose"
	logMaxSizeKey    = "log.max_size"
	logMaxBackupsKey = "log.max_backups"
	logMaxAgeKey     = "log.max_age"
	logCompressKey   = "log.compress"

	defaultLogFilename   = ".faultline.log"
	defaultLogLevel      = int(slog.LevelInfo)
	defaultLogVerbose    = false
	defaultLogMaxSize    = 10
	defaultLogMaxBackups = 3
	defaultLogMaxAge     = 28
	defaultLogCompress   = true
)

var globalLogger *slog.Logger

func init() {
	viper.SetConfigName(configBaseName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configFolderPath)
	viper.SetConfigFile(filepath.Join(configFolderPath, configFileName))
	viper.AutomaticEnv()
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	viper.SetDefault(configVersionKey, currentConfigVersion)
	viper.SetDefault(outputFlagName, defaultReportsDir)
	viper.SetDefault(noCacheFlagName, defaultNoCache)
	viper.SetDefault(runParallelConfigKey, defaultRunParallel)
	viper.SetDefault(buildTimeoutKey, int64(defaultBuildTimeout.Seconds()))
	viper.SetDefault(testTimeoutKey, int64(defaultTestTimeout.Seconds()))
	viper.SetDefault(formulaConfigKey, defaultFormula)

	viper.SetDefault(predicateSourceKey, defaultPredicateSource)
	viper.SetDefault(predicateFileKey, "")
	viper.SetDefault(topKConfigKey, defaultTopK)
	viper.SetDefault(noOppositeConfigKey, false)
	viper.SetDefault(maxLocationsConfigKey, defaultMaxLocations)
	viper.SetDefault(predicateRateLimitKey, defaultPredicateRate)
	viper.SetDefault(openAIBaseURLKey, "")
	viper.SetDefault(openAIModelKey, defaultOpenAIModel)
	viper.SetDefault(openAIAPIKeyKey, "")

	viper.SetDefault(storePathKey, "")
	viper.SetDefault(metricsPathConfigKey, "")

	// Logging defaults (used by config/env and as fallbacks for flags).
	viper.SetDefault(logFilenameKey, defaultLogFilename)
	viper.SetDefault(logLevelKey, defaultLogLevel)
	viper.SetDefault(logVerboseKey, defaultLogVerbose)
	viper.SetDefault(logMaxSizeKey, defaultLogMaxSize)
	viper.SetDefault(logMaxBackupsKey, defaultLogMaxBackups)
	viper.SetDefault(logMaxAgeKey, defaultLogMaxAge)
	viper.SetDefault(logCompressKey, defaultLogCompress)

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return
		}

		return
	}
}

// configSeconds reads a duration stored as whole seconds.
func configSeconds(key string, fallback time.Duration) time.Duration {
	seconds := viper.GetInt64(key)
	if seconds <= 0 {
		return fallback
	}

	return time.Duration(seconds) * time.Second
}

// storePath returns the predicate store location, defaulting to a file inside
// the reports directory.
func storePath() string {
	if path := strings.TrimSpace(viper.GetString(storePathKey)); path != "" {
		return path
	}

	return filepath.Join(viper.GetString(outputFlagName), defaultStoreFileName)
}

func parseSlogLevel(value string, defaultLevel slog.Level) slog.Level {
	level := strings.ToLower(strings.TrimSpace(value))
	if level == "" {
		return defaultLevel
	}

	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}

	// Allow numeric slog levels as well (e.g. -4 for debug).
	if n, err := strconv.Atoi(level); err == nil {
		return slog.Level(n)
	}

	return defaultLevel
}

// configureLogger configures the global slog logger.
//
// By default it logs at Info; if verbose is true it logs at Debug.
func configureLogger(logPath string, verbose bool) {
	if strings.TrimSpace(logPath) == "" {
		logPath = viper.GetString(logFilenameKey)
	}

	if strings.TrimSpace(logPath) == "" {
		logPath = defaultLogFilename
	}

	var logLevel slog.Level
	if verbose {
		logLevel = slog.LevelDebug
	} else {
		logLevel = parseSlogLevel(viper.GetString(logLevelKey), slog.LevelInfo)
	}

	logWriter := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    viper.GetInt(logMaxSizeKey),
		MaxBackups: viper.GetInt(logMaxBackupsKey),
		MaxAge:     viper.GetInt(logMaxAgeKey),
		Compress:   viper.GetBool(logCompressKey),
	}

	handler := slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		AddSource: true,
		Level:     logLevel,
	})

	globalLogger = slog.New(handler)
	slog.SetDefault(globalLogger)
}
