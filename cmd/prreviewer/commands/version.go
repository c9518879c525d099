package commands

import (
	"encoding/json"
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Version information, set at build time via ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long: `Print the version, git commit, build date and Go runtime of the
prreviewer binary.

Examples:
  prreviewer version
  prreviewer version --short
  prreviewer version --json`,
	Args: cobra.NoArgs,
	RunE: runVersion,
}

var (
	versionShort bool
	versionJSON  bool
)

func init() {
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().BoolVarP(&versionShort, "short", "s", false, "print only version number")
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "output as JSON")
}

// VersionInfo holds all version information
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetVersionInfo returns the build information of this binary. Values not
// set through ldflags are taken from the VCS stamp of "go build", if any.
func GetVersionInfo() VersionInfo {
	info := VersionInfo{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	for _, kv := range bi.Settings {
		switch {
		case kv.Key == "vcs.revision" && info.Commit == "unknown":
			info.Commit = kv.Value
		case kv.Key == "vcs.time" && info.BuildDate == "unknown":
			info.BuildDate = kv.Value
		}
	}
	return info
}

func runVersion(cmd *cobra.Command, args []string) error {
	info := GetVersionInfo()
	out := cmd.OutOrStdout()

	if versionShort {
		fmt.Fprintln(out, info.Version)
		return nil
	}

	if versionJSON {
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal version info: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	fmt.Fprintf(out, "prreviewer version %s\n", info.Version)
	fmt.Fprintf(out, "  Commit:     %s\n", info.Commit)
	fmt.Fprintf(out, "  Built:      %s\n", info.BuildDate)
	fmt.Fprintf(out, "  Go version: %s\n", info.GoVersion)
	fmt.Fprintf(out, "  OS/Arch:    %s/%s\n", info.OS, info.Arch)
	return nil
}
