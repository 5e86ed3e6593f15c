package flags

const (
	// DryRunFlagName exposes the shared dry-run flag name.
	DryRunFlagName = "dry-run"
	// DryRunFlagUsage describes the shared dry-run flag purpose.
	DryRunFlagUsage = "Print the planned invocations without spawning any process"
	// QuietFlagName exposes the shared quiet flag name.
	QuietFlagName = "quiet"
	// QuietFlagShorthand provides the shorthand for the quiet flag.
	QuietFlagShorthand = "q"
	// QuietFlagUsage describes the shared quiet flag purpose.
	QuietFlagUsage = "Suppress child process output"
)
