package main

import (
	"bufio"
	"encoding/json"
	"strings"
	"testing"
)

func callTool(t *testing.T, name, args string) ToolCallResult {
	t.Helper()

	params, err := json.Marshal(ToolCallParams{Name: name, Arguments: json.RawMessage(args)})
	if err != nil {
		t.Fatalf("marshal params: %v", err)
	}
	resp := NewMCPServer().handleRequest(JSONRPCRequest{JSONRPC: "2.0", ID: 1, Method: "tools/call", Params: params})
	if resp.Error != nil {
		t.Fatalf("unexpected rpc error: %+v", resp.Error)
	}
	result, ok := resp.Result.(ToolCallResult)
	if !ok {
		t.Fatalf("expected ToolCallResult, got %T", resp.Result)
	}
	return result
}

func TestNextOccurrencesTool(t *testing.T) {
	t.Parallel()

	result := callTool(t, "strata_next_occurrences",
		`{"pattern":"monthly","anchor":"2024-01-31","monthly":{"mode":"last_day"},"count":3}`)
	if result.IsError {
		t.Fatalf("expected success, got %q", result.Content[0].Text)
	}

	var out occurrencesResult
	if err := json.Unmarshal([]byte(result.Content[0].Text), &out); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	want := []string{"2024-01-31", "2024-02-29", "2024-03-31"}
	if strings.Join(out.Dates, ",") != strings.Join(want, ",") {
		t.Fatalf("expected %v, got %v", want, out.Dates)
	}
	if !strings.Contains(out.RRule, "FREQ=MONTHLY") || !strings.Contains(out.RRule, "BYMONTHDAY=-1") {
		t.Fatalf("expected monthly last-day rrule, got %q", out.RRule)
	}
}

func TestNextOccurrencesToolWeekdays(t *testing.T) {
	t.Parallel()

	result := callTool(t, "strata_next_occurrences",
		`{"pattern":"weekly","anchor":"2024-01-02","weekdays":"tue,thu","from":"2024-01-02","count":3}`)
	if result.IsError {
		t.Fatalf("expected success, got %q", result.Content[0].Text)
	}

	var out occurrencesResult
	if err := json.Unmarshal([]byte(result.Content[0].Text), &out); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	want := "2024-01-04,2024-01-09,2024-01-11"
	if got := strings.Join(out.Dates, ","); got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestToolErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		tool string
		args string
	}{
		{name: "bad anchor", tool: "strata_next_occurrences", args: `{"pattern":"daily","anchor":"31/01/2024"}`},
		{name: "weekly without days", tool: "strata_next_occurrences", args: `{"pattern":"weekly","anchor":"2024-01-02"}`},
		{name: "negative years", tool: "strata_project_fund", args: `{"balance":"100","annual_rate":"0.05","compounding":"monthly","years":-1}`},
		{name: "huge horizon", tool: "strata_project_fund", args: `{"balance":"100","annual_rate":"0.02","compounding":"monthly","years":768614336404564651}`},
		{name: "unknown compounding", tool: "strata_project_fund", args: `{"balance":"100","annual_rate":"0.05","compounding":"weekly","years":1}`},
		{name: "missing time", tool: "strata_should_deliver", args: `{"category":"payment"}`},
		{name: "unknown tool", tool: "strata_delete_everything", args: `{}`},
	}

	for _, testCase := range cases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()
			if result := callTool(t, testCase.tool, testCase.args); !result.IsError {
				t.Fatalf("expected error result, got %q", result.Content[0].Text)
			}
		})
	}
}

func TestProjectFundTool(t *testing.T) {
	t.Parallel()

	result := callTool(t, "strata_project_fund",
		`{"balance":"1000","annual_rate":"0.12","compounding":"monthly","years":1,"target":"1030"}`)
	if result.IsError {
		t.Fatalf("expected success, got %q", result.Content[0].Text)
	}

	var out struct {
		ProjectedBalance string `json:"projected_balance"`
		TargetMonth      int    `json:"target_month"`
		Months           []any  `json:"months"`
	}
	if err := json.Unmarshal([]byte(result.Content[0].Text), &out); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if out.ProjectedBalance != "1126.84" {
		t.Fatalf("expected 1126.84, got %s", out.ProjectedBalance)
	}
	if out.TargetMonth != 3 {
		t.Fatalf("expected target reached in month 3, got %d", out.TargetMonth)
	}
	if len(out.Months) != 0 {
		t.Fatalf("expected monthly rows to be dropped, got %d", len(out.Months))
	}
}

func TestShouldDeliverTool(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		args    string
		deliver bool
		reason  string
	}{
		{
			name:    "defaults",
			args:    `{"category":"meeting","at":"2024-03-01T12:00:00Z"}`,
			deliver: true,
			reason:  "allowed",
		},
		{
			name:    "quiet in recipient timezone",
			args:    `{"category":"payment","at":"2024-03-01T12:00:00Z","quiet_hours_enabled":true,"quiet_hours_start":"22:00","quiet_hours_end":"08:00","timezone":"Australia/Sydney"}`,
			deliver: false,
			reason:  "quiet_hours",
		},
		{
			name:    "category off",
			args:    `{"category":"meeting","at":"2024-03-01T12:00:00Z","categories":{"meeting":false}}`,
			deliver: false,
			reason:  "category_off",
		},
		{
			name:    "emergency ignores master switch",
			args:    `{"category":"emergency","at":"2024-03-01T12:00:00Z","email_notifications":false}`,
			deliver: true,
			reason:  "emergency",
		},
	}

	for _, testCase := range cases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			result := callTool(t, "strata_should_deliver", testCase.args)
			if result.IsError {
				t.Fatalf("expected success, got %q", result.Content[0].Text)
			}
			var out deliverResult
			if err := json.Unmarshal([]byte(result.Content[0].Text), &out); err != nil {
				t.Fatalf("decode result: %v", err)
			}
			if out.Deliver != testCase.deliver || string(out.Reason) != testCase.reason {
				t.Fatalf("expected %v/%s, got %v/%s", testCase.deliver, testCase.reason, out.Deliver, out.Reason)
			}
		})
	}
}

func TestRunSkipsNotifications(t *testing.T) {
	t.Parallel()

	input := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
		`not json`,
		`{"jsonrpc":"2.0","id":3,"method":"resources/list"}`,
	}, "\n")

	var out strings.Builder
	NewMCPServer().Run(strings.NewReader(input), &out)

	var responses []map[string]json.RawMessage
	scanner := bufio.NewScanner(strings.NewReader(out.String()))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var resp map[string]json.RawMessage
		if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		responses = append(responses, resp)
	}

	if len(responses) != 4 {
		t.Fatalf("expected 4 responses, got %d", len(responses))
	}
	if !strings.Contains(string(responses[0]["result"]), `"strata-mcp"`) {
		t.Fatalf("expected server info, got %s", responses[0]["result"])
	}
	if !strings.Contains(string(responses[1]["result"]), "strata_should_deliver") {
		t.Fatalf("expected tool list, got %s", responses[1]["result"])
	}
	if !strings.Contains(string(responses[2]["error"]), "-32700") {
		t.Fatalf("expected parse error, got %s", responses[2]["error"])
	}
	if !strings.Contains(string(responses[3]["error"]), "-32601") {
		t.Fatalf("expected method not found, got %s", responses[3]["error"])
	}
}
