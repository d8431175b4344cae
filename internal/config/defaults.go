package config

const (
	defaultRootDir            = "~/dpxflow"
	defaultLogDir             = "~/.local/share/dpxflow/logs"
	defaultGapCheckDir        = "dpx_gap_check"
	defaultGapCheckFailDir    = "dpx_for_review/gap_check_fails"
	defaultPolicyCheckDir     = "dpx_policy_check"
	defaultPolicyCheckFailDir = "dpx_for_review/dpx_policy_check_fails"
	defaultToCookDir          = "dpx_to_cook"
	defaultToCookV2Dir        = "dpx_to_cook_v2"
	defaultCookedDir          = "mkv_cooked"
	defaultMKVPolicyFailDir   = "dpx_for_review/mkv_policy_check_fails"
	defaultPostCookFailDir    = "dpx_for_review/post_rawcook_fails"
	defaultCompletedDir       = "dpx_completed"
	defaultRAWcookedBinary    = "rawcooked"
	defaultRAWcookedSamples   = 5281680
	defaultProbeTimeout       = 3600
	defaultCookTimeout        = 86400
	defaultMediaConchBinary   = "mediaconch"
	defaultMediaConchTimeout  = 600
	defaultBatchSize          = 20
	defaultWorkers            = 8
	defaultWatchDebounce      = 30
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultLogRetentionDays   = 60
	licenseEnvVar             = "RAWCOOKED_LICENSE"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			RootDir:            defaultRootDir,
			LogDir:             defaultLogDir,
			GapCheckDir:        defaultGapCheckDir,
			GapCheckFailDir:    defaultGapCheckFailDir,
			PolicyCheckDir:     defaultPolicyCheckDir,
			PolicyCheckFailDir: defaultPolicyCheckFailDir,
			ToCookDir:          defaultToCookDir,
			ToCookV2Dir:        defaultToCookV2Dir,
			CookedDir:          defaultCookedDir,
			MKVPolicyFailDir:   defaultMKVPolicyFailDir,
			PostCookFailDir:    defaultPostCookFailDir,
			CompletedDir:       defaultCompletedDir,
		},
		RAWcooked: RAWcooked{
			Binary:       defaultRAWcookedBinary,
			Samples:      defaultRAWcookedSamples,
			Framemd5:     true,
			ProbeTimeout: defaultProbeTimeout,
			CookTimeout:  defaultCookTimeout,
		},
		MediaConch: MediaConch{
			Binary:  defaultMediaConchBinary,
			Timeout: defaultMediaConchTimeout,
		},
		Workflow: Workflow{
			CheckGaps:     true,
			CheckPolicy:   true,
			BatchSize:     defaultBatchSize,
			Workers:       defaultWorkers,
			WatchDebounce: defaultWatchDebounce,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
