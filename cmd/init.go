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
	"os"
	"path/filepath"

	"github.com/binaek/cling"
	"github.com/pkg/errors"

	"github.com/corint-run/corint/repo"
)

func addInitCmd(cli *cling.CLI) {
	cli.WithCommand(
		cling.NewCommand("init", initCmd).
			WithArgument(cling.NewStringCmdInput("name").
				WithDescription("Name of the repository to scaffold").
				AsArgument(),
			).
			WithFlag(cling.
				NewStringCmdInput("dir").
				WithDefault(".").
				WithDescription("Directory to scaffold into").
				AsFlag(),
			),
	)
}

type initCmdArgs struct {
	Name string `cling-name:"name"`
	Dir  string `cling-name:"dir"`
}

// initCmd scaffolds a minimal working repository: manifest, registry,
// one pipeline, one ruleset, and one memory list, ready for
// `corint decide` and `corint serve`.
func initCmd(ctx context.Context, args []string) error {
	input := initCmdArgs{}
	if err := cling.Hydrate(ctx, args, &input); err != nil {
		return err
	}

	root := filepath.Join(input.Dir, input.Name)
	if _, err := os.Stat(filepath.Join(root, repo.ManifestFileName)); err == nil {
		return errors.Errorf("%s already contains a repository", root)
	}

	files := map[string]string{
		repo.ManifestFileName: fmt.Sprintf(`schema_version = "1"
name = "%s"
version = "0.1.0"

[engines]
corint = ">= 0.1"
`, input.Name),
		"registry.yaml": `registry:
  entries:
    - pipeline_id: transactions
      when: 'type == "transaction"'
  default: transactions
`,
		filepath.Join("pipelines", "transactions.yaml"): `pipeline:
  id: transactions
  name: Transaction screening
  entry: checks
  steps:
    - id: checks
      type: ruleset
      ruleset_ref: transaction_checks
      next: end
  decision:
    - condition: "total_score >= 150"
      action: decline
      reason: "risk score too high"
      actions: [block]
    - condition: "total_score >= 80"
      action: review
      reason: "risk score needs review"
      actions: [manual_review]
    - default: true
      action: approve
      reason: "low risk"
`,
		filepath.Join("library", "rulesets", "transaction_checks.yaml"): `ruleset:
  id: transaction_checks
  rules:
    - id: blocked_user_check
      name: Blocked user
      when:
        event_type: transaction
        all:
          - "user_id in list.blocked_users"
      score: 1000
    - id: high_amount
      name: High transaction amount
      when:
        all:
          - "amount > 1000"
      score: 80
  conclusion:
    - condition: "score >= 150"
      signal: deny
      actions: [block]
      reason: "rules scored {score}"
    - condition: "score >= 80"
      signal: review
      actions: [manual_review]
    - default: true
      signal: approve
`,
		filepath.Join("configs", "lists", "blocked_users.yaml"): `list:
  id: blocked_users
  backend: memory
  entries:
    - value: example_blocked_user
`,
	}

	for path, content := range files {
		full := filepath.Join(root, path)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return errors.Wrapf(err, "creating %s", filepath.Dir(full))
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			return errors.Wrapf(err, "writing %s", full)
		}
	}

	fmt.Printf("✓ scaffolded repository %q in %s\n", input.Name, root)
	fmt.Println("  try: corint decide --repository", root, `--event '{"type":"transaction","user_id":"u1","amount":50}'`)
	return nil
}
