// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"os"

	"github.com/HealthSamurai/fhir-fuse/internal/mountopts"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// flags holds the small set of knobs the CLI exposes: mount options, a
// process-chosen filesystem name, and logging. Every flag except -o is
// also readable from a FHIRFUSE_* environment variable via viper.
var flags struct {
	mountOptions mountopts.OptionValue
	fsName       string
	logPath      string
	logJSON      bool
	debug        bool
	metricsAddr  string
}

var rootCmd = &cobra.Command{
	Use:   "fhirfuse [flags] mountpoint base_url",
	Short: "Mount a remote clinical-records HTTP server as a local filesystem",
	Long: `fhirfuse projects a remote clinical-records server onto POSIX: one
directory per resource type, one JSON file per record, ad hoc search
directories, and typed-operation execution via file lookup.`,
	Args: cobra.ExactArgs(2),
	RunE: runMount,
}

func init() {
	flags.mountOptions = make(mountopts.OptionValue)

	rootCmd.Flags().VarP(&flags.mountOptions, "o", "o", "Additional mount options (repeatable, name[=value]).")
	rootCmd.Flags().StringVar(&flags.fsName, "fsname", "fhirfuse", "Filesystem name reported to the host OS.")
	rootCmd.Flags().StringVar(&flags.logPath, "log-file", "", "Path to a log file. Empty means stderr.")
	rootCmd.Flags().BoolVar(&flags.logJSON, "log-json", false, "Emit structured JSON log lines instead of text.")
	rootCmd.Flags().BoolVar(&flags.debug, "debug", false, "Enable debug-level logging.")
	rootCmd.Flags().StringVar(&flags.metricsAddr, "metrics-addr", "", "If set, serve Prometheus metrics on this address (e.g. :9101).")

	viper.SetEnvPrefix("FHIRFUSE")
	viper.AutomaticEnv()
	_ = viper.BindPFlag("fsname", rootCmd.Flags().Lookup("fsname"))
	_ = viper.BindPFlag("log-file", rootCmd.Flags().Lookup("log-file"))
	_ = viper.BindPFlag("log-json", rootCmd.Flags().Lookup("log-json"))
	_ = viper.BindPFlag("debug", rootCmd.Flags().Lookup("debug"))
	_ = viper.BindPFlag("metrics-addr", rootCmd.Flags().Lookup("metrics-addr"))
}

// Execute runs the root command, exiting with status 1 on any error,
// including wrong arity.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
