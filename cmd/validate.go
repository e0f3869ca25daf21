// Copyright 2025 Binaek Sarkar
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"context"
	"fmt"

	"github.com/binaek/cling"

	"github.com/corint-run/corint/repo"
)

func addValidateCmd(cli *cling.CLI) {
	cli.WithCommand(
		cling.NewCommand("validate", validateCmd).
			WithFlag(cling.
				NewStringCmdInput("repository").
				WithDefault(".").
				WithDescription("Rule repository directory to validate").
				AsFlag(),
			),
	)
}

type validateCmdArgs struct {
	Repository string `cling-name:"repository"`
}

// validateCmd loads and compiles the repository the same way serve does,
// then throws the result away: success means the repository would
// activate cleanly.
func validateCmd(ctx context.Context, args []string) error {
	input := validateCmdArgs{}
	if err := cling.Hydrate(ctx, args, &input); err != nil {
		return err
	}

	r, err := repo.Open(ctx, input.Repository, repo.Options{})
	if err != nil {
		return err
	}
	defer r.Close()

	gen := r.Active()
	fmt.Printf("✓ %s is valid\n", gen.Manifest.Name)
	fmt.Printf("  pipelines: %d\n", len(gen.Artifacts.Pipelines))
	fmt.Printf("  rulesets:  %d\n", len(gen.Artifacts.Rulesets))
	fmt.Printf("  features:  %d\n", len(gen.Artifacts.Features))
	fmt.Printf("  lists:     %d\n", len(gen.Artifacts.Lists))
	return nil
}
