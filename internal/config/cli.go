package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// BindFlags registers the spec section 6 CLI surface onto cmd's persistent
// flags, the way the teacher's BuildConfigFromFlags defines its pflag.FlagSet
// -- here bound directly onto a cobra.Command's own FlagSet so every
// subcommand in cmd/ritual inherits the same workspace/crates contract.
func BindFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("workspace", "", "Absolute path to the workspace directory (required).")
	cmd.PersistentFlags().StringSlice("crates", nil, "Crates to process; 'all' expands to the configured set (required).")
	cmd.PersistentFlags().String("output-crates-version", "", "Semver version stamped onto generated crates.")
	cmd.PersistentFlags().Bool("local-paths", false, "Stored as Config.LocalPaths; no pipeline step reads it.")
}

// FromFlags reads the flags BindFlags registered and resolves them into a
// validated Config, expanding "all" against configuredCrates.
func FromFlags(fs *pflag.FlagSet, configuredCrates []string) (*Config, error) {
	workspace, err := fs.GetString("workspace")
	if err != nil {
		return nil, err
	}
	crates, err := fs.GetStringSlice("crates")
	if err != nil {
		return nil, err
	}
	outputVersion, err := fs.GetString("output-crates-version")
	if err != nil {
		return nil, err
	}
	localPaths, err := fs.GetBool("local-paths")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Workspace:           workspace,
		Crates:              ExpandCrates(crates, configuredCrates),
		OutputCratesVersion: outputVersion,
		LocalPaths:          localPaths,
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
