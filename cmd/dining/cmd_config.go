// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/dining/pkg/ux"
	"github.com/AleutianAI/dining/services/dining/config"
)

// runConfigInit is the RunE of "dining config init".
func runConfigInit(cmd *cobra.Command, args []string) error {
	path := args[0]
	if err := config.WriteDefault(path); err != nil {
		if errors.Is(err, config.ErrUnknownFormat) {
			return usageError(cmd, err)
		}
		return err
	}
	ux.NewPrinter(cmd.OutOrStdout(), ux.DetectPersonality(os.Stdout)).Success("wrote " + path)
	return nil
}
