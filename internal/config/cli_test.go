package config

import (
	"testing"

	"github.com/spf13/cobra"
)

func newTestCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	BindFlags(cmd)
	return cmd
}

func TestFromFlagsResolvesConfigFromParsedFlags(t *testing.T) {
	cmd := newTestCommand()
	if err := cmd.ParseFlags([]string{"--workspace=/tmp/ws", "--crates=widgets,core"}); err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}

	cfg, err := FromFlags(cmd.Flags(), []string{"widgets", "core"})
	if err != nil {
		t.Fatalf("FromFlags: %v", err)
	}
	if cfg.Workspace != "/tmp/ws" {
		t.Errorf("expected workspace /tmp/ws, got %q", cfg.Workspace)
	}
	if len(cfg.Crates) != 2 {
		t.Errorf("expected 2 crates, got %v", cfg.Crates)
	}
}

func TestFromFlagsExpandsAllAgainstConfiguredCrates(t *testing.T) {
	cmd := newTestCommand()
	if err := cmd.ParseFlags([]string{"--workspace=/tmp/ws", "--crates=all"}); err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}

	cfg, err := FromFlags(cmd.Flags(), []string{"widgets", "core"})
	if err != nil {
		t.Fatalf("FromFlags: %v", err)
	}
	if len(cfg.Crates) != 2 {
		t.Errorf("expected 'all' to expand to both configured crates, got %v", cfg.Crates)
	}
}

func TestFromFlagsRejectsMissingWorkspace(t *testing.T) {
	cmd := newTestCommand()
	if err := cmd.ParseFlags([]string{"--crates=widgets"}); err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}

	if _, err := FromFlags(cmd.Flags(), []string{"widgets"}); err == nil {
		t.Fatal("expected an error for a missing --workspace flag")
	}
}

func TestFromFlagsReadsLocalPathsAndOutputVersion(t *testing.T) {
	cmd := newTestCommand()
	args := []string{"--workspace=/tmp/ws", "--crates=widgets", "--local-paths", "--output-crates-version=1.2.3"}
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}

	cfg, err := FromFlags(cmd.Flags(), []string{"widgets"})
	if err != nil {
		t.Fatalf("FromFlags: %v", err)
	}
	if !cfg.LocalPaths {
		t.Error("expected LocalPaths to be true")
	}
	if cfg.OutputCratesVersion != "1.2.3" {
		t.Errorf("expected output-crates-version 1.2.3, got %q", cfg.OutputCratesVersion)
	}
}
