package loom

import (
	"os"
	"path/filepath"
	"testing"
)

func issueCodes(issues []ValidationIssue) map[string]bool {
	out := make(map[string]bool, len(issues))
	for _, i := range issues {
		out[i.Code] = true
	}
	return out
}

func TestValidateTask_StructuralRules(t *testing.T) {
	task := Task{
		ID:        "  ",
		Objective: "",
		Budget:    &Budget{MaxSteps: -1, MaxRuntimeSeconds: -5},
		Resources: []TaskResource{
			{Kind: "tape", Locator: "x", Required: true},
			{Kind: "file", Locator: ""},
		},
	}
	codes := issueCodes(ValidateTask(task, ""))
	for _, want := range []string{
		"TASK_ID_INVALID", "TASK_OBJECTIVE_INVALID",
		"TASK_BUDGET_STEPS_INVALID", "TASK_BUDGET_RUNTIME_INVALID",
		"TASK_RESOURCE_KIND_INVALID", "TASK_RESOURCE_LOCATOR_MISSING",
	} {
		if !codes[want] {
			t.Errorf("expected issue %s, got %v", want, codes)
		}
	}
}

func TestValidateTask_ValidTaskHasNoIssues(t *testing.T) {
	task := Task{
		ID:        "t1",
		Objective: "do the thing",
		Budget:    &Budget{MaxSteps: 10},
		EnvSpec:   EnvSpec{Type: "local"},
		Resources: []TaskResource{{Kind: "url", Locator: "https://example.com"}},
	}
	if issues := ValidateTask(task, ""); len(issues) != 0 {
		t.Fatalf("expected no issues, got %v", issues)
	}
}

func TestValidateTask_WorkspaceResourceChecks(t *testing.T) {
	ws := t.TempDir()
	if err := os.WriteFile(filepath.Join(ws, "present.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	task := Task{
		ID:        "t2",
		Objective: "use the workspace",
		Resources: []TaskResource{
			{Kind: "file", Locator: "present.txt", Required: true},
			{Kind: "file", Locator: "absent.txt", Required: true},
			{Kind: "file", Locator: "to-be-created.txt"},
		},
	}
	codes := issueCodes(ValidateTask(task, ws))
	if !codes["TASK_RESOURCE_MISSING"] {
		t.Errorf("expected TASK_RESOURCE_MISSING for absent required resource, got %v", codes)
	}
	if codes["TASK_RESOURCE_NOT_WRITABLE"] {
		t.Errorf("present.txt should be writable, got %v", codes)
	}
	if codes["TASK_RESOURCE_PARENT_NOT_WRITABLE"] {
		t.Errorf("workspace dir should accept new files, got %v", codes)
	}
}
