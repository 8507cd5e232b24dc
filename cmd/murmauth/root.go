// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Murmauth Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the murmauth CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "murmauth",
		Short: "Directory and guest authentication for a Mumble server",
		Long: `Murmauth authenticates Mumble users against an LDAP directory and hands
out time-limited guest access through shareable web links.`,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	// Add subcommands
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newNameToIDCmd())

	return cmd
}
