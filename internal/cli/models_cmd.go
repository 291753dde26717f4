// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jeranaias/claude-chat/internal/config"
	"github.com/jeranaias/claude-chat/internal/model"
	"github.com/jeranaias/claude-chat/internal/util"
)

const nameColumnWidth = 12

// newModelsCommand lists the model registry with the configured fast and
// default models marked.
func newModelsCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List known models and their prices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			printModels(cmd.OutOrStdout(), cfg)
			return nil
		},
	}
}

func printModels(out io.Writer, cfg *config.Config) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, TitleStyle.Render("Models"))
	fmt.Fprintln(out, RenderSeparator())

	for _, name := range model.ModelShortNames() {
		info := model.Models[name]
		var marks []string
		if info.ID == model.ResolveID(cfg.Models.Fast) {
			marks = append(marks, "fast")
		}
		if info.ID == model.ResolveID(cfg.Models.Default) {
			marks = append(marks, "default")
		}

		line := LabelStyle.Render(util.PadRight(name, nameColumnWidth)) +
			util.PadRight(info.ID, 30) + " " +
			util.PadRight(info.CostString(), 24) + " " +
			DimStyle.Render(info.ContextString())
		for _, m := range marks {
			line += " " + SuccessStyle.Render("["+m+"]")
		}
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out)
}
