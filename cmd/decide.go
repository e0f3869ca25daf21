// SPDX-License-Identifier: Apache-2.0
//
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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"strings"

	"github.com/binaek/cling"

	"github.com/corint-run/corint/decision"
	"github.com/corint-run/corint/engine"
	"github.com/corint-run/corint/repo"
)

func addDecideCmd(cli *cling.CLI) {
	cli.WithCommand(
		cling.NewCommand("decide", decideCmd).
			WithFlag(cling.
				NewStringCmdInput("repository").
				WithDefault(".").
				WithDescription("Rule repository directory to load").
				AsFlag(),
			).
			WithFlag(cling.
				NewStringCmdInput("output").
				WithDefault("table").
				WithValidator(cling.NewEnumValidator("table", "json")).
				WithDescription("Output format to use. One of: table, json").
				AsFlag(),
			).
			WithFlag(cling.
				NewStringCmdInput("event-file").
				WithDefault("").
				WithDescription("File to load the event from").
				AsFlag(),
			).
			WithFlag(cling.
				NewStringCmdInput("event").
				WithDefault("{}").
				WithDescription("Event JSON to decide on").
				AsFlag(),
			).
			WithFlag(cling.
				NewBoolCmdInput("trace").
				WithDefault(false).
				WithDescription("Record and print the evaluation trace").
				AsFlag(),
			),
	)
}

type decideCmdArgs struct {
	Repository string `cling-name:"repository"`
	Event      string `cling-name:"event"`
	EventFile  string `cling-name:"event-file"`
	Output     string `cling-name:"output"`
	Trace      bool   `cling-name:"trace"`
}

func decideCmd(ctx context.Context, args []string) error {
	input := decideCmdArgs{}
	if err := cling.Hydrate(ctx, args, &input); err != nil {
		return err
	}

	fileEvent := make(map[string]any)
	if input.EventFile != "" {
		content, err := os.ReadFile(input.EventFile)
		if err != nil {
			return err
		}
		if err := decodeJSONMap(content, &fileEvent); err != nil {
			return err
		}
	}

	flagEvent := make(map[string]any)
	if err := decodeJSONMap([]byte(input.Event), &flagEvent); err != nil {
		return err
	}

	event := make(map[string]any)
	maps.Copy(event, fileEvent)
	maps.Copy(event, flagEvent)

	eng, err := engine.Open(ctx, input.Repository, repo.Options{})
	if err != nil {
		return err
	}
	defer eng.Close()

	resp, err := eng.Decide(ctx, &engine.Request{
		Event:   event,
		Options: engine.RequestOptions{EnableTrace: input.Trace},
	})
	if err != nil {
		return err
	}

	if input.Output == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	formatDecisionTable(resp)
	return nil
}

func decodeJSONMap(b []byte, into *map[string]any) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	return dec.Decode(into)
}

// formatDecisionTable prints the decision in a terminal-friendly layout:
//
//	Pipeline:  transactions
//	Decision:  ⨯ decline (score 1080)
//	Reason:    blocked user
//	Actions:   block
//	Triggered:
//	  ✓ blocked_user_check
//	  ✓ high_amount
func formatDecisionTable(resp *decision.Response) {
	fmt.Printf("Pipeline:  %s\n", orDash(resp.PipelineID))
	d := resp.Decision
	if d == nil {
		fmt.Println("Decision:  (none)")
		return
	}
	fmt.Printf("Decision:  %s %s (score %d)\n", decisionSymbol(d.Result), d.Result, d.Score)
	fmt.Printf("Reason:    %s\n", orDash(d.Reason))
	if len(d.Actions) > 0 {
		fmt.Printf("Actions:   %s\n", strings.Join(d.Actions, ", "))
	}
	if len(d.TriggeredRules) > 0 {
		fmt.Println("Triggered:")
		for _, id := range d.TriggeredRules {
			fmt.Printf("  ✓ %s\n", id)
		}
	}
	fmt.Printf("Elapsed:   %.2fms\n", resp.ProcessingTimeMS)
	if len(resp.Trace) > 0 {
		fmt.Println("Trace:")
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, resp.Trace, "  ", "  "); err == nil {
			fmt.Printf("  %s\n", pretty.String())
		}
	}
}

func decisionSymbol(result string) string {
	switch result {
	case "approve":
		return "✓"
	case "decline":
		return "⨯"
	case "review":
		return "•"
	default:
		return "-"
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
