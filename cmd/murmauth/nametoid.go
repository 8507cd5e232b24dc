// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Murmauth Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/tendollarbond/murmauth/internal/auth"
)

// newNameToIDCmd creates the name-to-id subcommand. It prints the stable
// numeric id a username maps to, which is handy when writing voice-server
// ACLs by hand.
func newNameToIDCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "name-to-id <username>",
		Short: "Print the numeric id for a username",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.Printf("%d\n", auth.UsernameToID(args[0]))
			return nil
		},
	}
}
