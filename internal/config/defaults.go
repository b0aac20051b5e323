package config

const (
	defaultConfigPath           = "~/.config/stabledracor/config.toml"
	defaultStateDir             = "~/.local/share/stabledracor"
	defaultLogDir               = "~/.local/share/stabledracor/logs"
	defaultLocalAPIURL          = "http://localhost:8088/api/"
	defaultLocalUsername        = "admin"
	defaultRequestTimeout       = 60
	defaultSourceAPIURL         = "https://dracor.org/api/"
	defaultStagingAPIURL        = "https://staging.dracor.org/api/"
	defaultGitHubAPIURL         = "https://api.github.com/"
	defaultGitHubRawURL         = "https://raw.githubusercontent.com/"
	defaultGitHubOwner          = "dracor-org"
	defaultGitHubDataFolder     = "tei"
	defaultReadinessInterval    = 5
	defaultReadinessMaxAttempts = 10
	defaultLabelNamespace       = "org.dracor.stable-dracor"
	defaultImageNamespace       = "dracor"
	defaultImagePrefix          = "stable-dracor"
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultLogRetentionDays     = 30
)

// Default returns a Config populated with repository defaults. The local
// password defaults to empty, matching a fresh DraCor container.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Local: Local{
			APIURL:         defaultLocalAPIURL,
			Username:       defaultLocalUsername,
			RequestTimeout: defaultRequestTimeout,
		},
		Source: Source{
			APIURL:     defaultSourceAPIURL,
			StagingURL: defaultStagingAPIURL,
		},
		GitHub: GitHub{
			APIURL:     defaultGitHubAPIURL,
			RawURL:     defaultGitHubRawURL,
			Owner:      defaultGitHubOwner,
			DataFolder: defaultGitHubDataFolder,
		},
		Readiness: Readiness{
			IntervalSeconds: defaultReadinessInterval,
			MaxAttempts:     defaultReadinessMaxAttempts,
		},
		Labels: Labels{Namespace: defaultLabelNamespace},
		Image: Image{
			Namespace: defaultImageNamespace,
			Prefix:    defaultImagePrefix,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
