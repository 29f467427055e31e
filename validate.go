package loom

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ValidationIssue is one structural defect found in a Task.
type ValidationIssue struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Field   string         `json:"field"`
	Details map[string]any `json:"details,omitempty"`
}

var allowedResourceKinds = map[string]bool{"file": true, "dir": true, "url": true, "artifact": true}

// ValidateTask checks a Task's structural invariants: non-empty
// id/objective, positive budget values where set, a non-empty env_spec
// type when one is given, and well-formed resources. When workspace is
// non-empty, every resource locator except url ones is additionally checked for
// existence and writability relative to it.
func ValidateTask(task Task, workspace string) []ValidationIssue {
	var issues []ValidationIssue

	if strings.TrimSpace(task.ID) == "" {
		issues = append(issues, ValidationIssue{
			Code: "TASK_ID_INVALID", Message: "Task.ID must be a non-empty string", Field: "id",
		})
	}
	if strings.TrimSpace(task.Objective) == "" {
		issues = append(issues, ValidationIssue{
			Code: "TASK_OBJECTIVE_INVALID", Message: "Task.Objective must be a non-empty string", Field: "objective",
		})
	}

	if task.Budget != nil {
		if task.Budget.MaxSteps != 0 && task.Budget.MaxSteps < 0 {
			issues = append(issues, ValidationIssue{
				Code: "TASK_BUDGET_STEPS_INVALID", Message: "Task budget max_steps must be > 0",
				Field: "budget.max_steps", Details: map[string]any{"value": task.Budget.MaxSteps},
			})
		}
		if task.Budget.MaxRuntimeSeconds != 0 && task.Budget.MaxRuntimeSeconds < 0 {
			issues = append(issues, ValidationIssue{
				Code: "TASK_BUDGET_RUNTIME_INVALID", Message: "Task budget max_runtime_seconds must be > 0",
				Field: "budget.max_runtime_seconds", Details: map[string]any{"value": task.Budget.MaxRuntimeSeconds},
			})
		}
		if task.Budget.MaxTokens != 0 && task.Budget.MaxTokens < 0 {
			issues = append(issues, ValidationIssue{
				Code: "TASK_BUDGET_TOKENS_INVALID", Message: "Task budget max_tokens must be > 0",
				Field: "budget.max_tokens", Details: map[string]any{"value": task.Budget.MaxTokens},
			})
		}
	}

	if task.EnvSpec.Type != "" && strings.TrimSpace(task.EnvSpec.Type) == "" {
		issues = append(issues, ValidationIssue{
			Code: "TASK_ENV_SPEC_INVALID", Message: "env_spec.type must be a non-empty string", Field: "env_spec.type",
		})
	}

	var root string
	if workspace != "" {
		if abs, err := filepath.Abs(workspace); err == nil {
			root = abs
		}
	}

	for idx, res := range task.Resources {
		field := "resources[" + strconv.Itoa(idx) + "]"
		if !allowedResourceKinds[res.Kind] {
			issues = append(issues, ValidationIssue{
				Code: "TASK_RESOURCE_KIND_INVALID", Message: "unsupported TaskResource.Kind: " + res.Kind,
				Field: field + ".kind", Details: map[string]any{"kind": res.Kind},
			})
		}
		if strings.TrimSpace(res.Locator) == "" {
			issues = append(issues, ValidationIssue{
				Code: "TASK_RESOURCE_LOCATOR_MISSING", Message: "TaskResource requires a locator", Field: field,
			})
		}
		if res.Mount != "" && strings.TrimSpace(res.Mount) == "" {
			issues = append(issues, ValidationIssue{
				Code: "TASK_RESOURCE_MOUNT_INVALID", Message: "TaskResource.Mount must be non-empty when provided",
				Field: field + ".mount",
			})
		}
		if root == "" || res.Locator == "" || res.Kind == "url" {
			continue
		}
		candidate := filepath.Join(root, res.Locator)
		info, err := os.Stat(candidate)
		switch {
		case err == nil:
			if !isWritable(candidate, info) {
				issues = append(issues, ValidationIssue{
					Code: "TASK_RESOURCE_NOT_WRITABLE", Message: "resource is not writable: " + res.Locator,
					Field: field + ".locator", Details: map[string]any{"path": res.Locator},
				})
			}
		case res.Required:
			issues = append(issues, ValidationIssue{
				Code: "TASK_RESOURCE_MISSING", Message: "required resource does not exist: " + res.Locator,
				Field: field + ".locator", Details: map[string]any{"path": res.Locator},
			})
		default:
			parentInfo, perr := os.Stat(filepath.Dir(candidate))
			if perr != nil || !isWritable(filepath.Dir(candidate), parentInfo) {
				issues = append(issues, ValidationIssue{
					Code: "TASK_RESOURCE_PARENT_NOT_WRITABLE", Message: "resource parent directory is not writable: " + res.Locator,
					Field: field + ".locator", Details: map[string]any{"path": res.Locator},
				})
			}
		}
	}

	return issues
}

func isWritable(path string, info os.FileInfo) bool {
	if info.IsDir() {
		probe := filepath.Join(path, ".loom-writable-probe")
		f, err := os.Create(probe)
		if err != nil {
			return false
		}
		f.Close()
		os.Remove(probe)
		return true
	}
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return false
	}
	f.Close()
	return true
}
