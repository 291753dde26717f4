// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// confirm.go - Confirmation handling for commands that overwrite files.
//
// Confirmation flow:
//  1. If --force is present, proceed without prompting
//  2. If stdin is a non-terminal file (piped, cron, CI), refuse without --force
//  3. Otherwise, ask and accept y or yes

package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// RequireConfirmation asks the user to confirm action on in/out.
func RequireConfirmation(in io.Reader, out io.Writer, force bool, action string) (bool, error) {
	if force {
		return true, nil
	}
	if f, ok := in.(*os.File); ok && !isTerminal(f) {
		return false, fmt.Errorf("confirmation required but stdin is not a terminal; use --force")
	}

	fmt.Fprintf(out, "%s [y/N]: ", WarningStyle.Render("Are you sure you want to "+action+"?"))

	input, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && input == "" {
		if err == io.EOF {
			return false, nil
		}
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}

	response := strings.ToLower(strings.TrimSpace(input))
	return response == "y" || response == "yes", nil
}

// ShowCancellationMessage reports that nothing was changed.
func ShowCancellationMessage(out io.Writer) {
	fmt.Fprintln(out, DimStyle.Render("Cancelled. No changes made."))
}
