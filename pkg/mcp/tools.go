package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/evoflow/internal/validation"
	"github.com/rendis/evoflow/pkg/schema"
)

func registerTools(s *server.MCPServer, deps Deps) {
	s.AddTool(mcp.NewTool("evoflow_run",
		mcp.WithDescription("Execute a workflow definition and return the execution result."),
		mcp.WithString("definition", mcp.Required(),
			mcp.Description("Workflow definition as a JSON document.")),
	), runHandler(deps))

	s.AddTool(mcp.NewTool("evoflow_optimize",
		mcp.WithDescription("Run evolutionary optimization over a workflow definition and return the Pareto front."),
		mcp.WithString("definition", mcp.Required(),
			mcp.Description("Workflow definition with an optimization config, as a JSON document.")),
	), optimizeHandler(deps))

	s.AddTool(mcp.NewTool("evoflow_suggest",
		mcp.WithDescription("Score an archived execution with the workflow's evaluators and return improvement suggestions."),
		mcp.WithString("definition", mcp.Required(),
			mcp.Description("Workflow definition as a JSON document.")),
		mcp.WithString("execution_id", mcp.Required(),
			mcp.Description("ID of an archived execution of this workflow.")),
	), suggestHandler(deps))

	s.AddTool(mcp.NewTool("evoflow_strategies",
		mcp.WithDescription("List the registered mutation strategies and fitness evaluators."),
	), strategiesHandler(deps))

	s.AddTool(mcp.NewTool("evoflow_history",
		mcp.WithDescription("List archived runs for a workflow, newest first."),
		mcp.WithString("workflow_id",
			mcp.Description("Workflow ID to filter by. Empty lists all workflows.")),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of runs to return. Defaults to 50.")),
	), historyHandler(deps))

	s.AddTool(mcp.NewTool("evoflow_cancel",
		mcp.WithDescription("Cancel a running execution."),
		mcp.WithString("execution_id", mcp.Required(),
			mcp.Description("ID of the execution to cancel.")),
	), cancelHandler(deps))

	s.AddTool(mcp.NewTool("evoflow_schedule",
		mcp.WithDescription("Schedule a workflow to run on a cron spec."),
		mcp.WithString("job_id", mcp.Required(),
			mcp.Description("Unique job identifier.")),
		mcp.WithString("spec", mcp.Required(),
			mcp.Description("Cron spec, standard 5-field syntax.")),
		mcp.WithString("definition", mcp.Required(),
			mcp.Description("Workflow definition as a JSON document.")),
	), scheduleHandler(deps))
}

func runHandler(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		def, verr := parseDefinition(req)
		if verr != "" {
			return mcp.NewToolResultError(verr), nil
		}

		result, err := deps.Engine.Execute(ctx, def)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(result)
	}
}

func optimizeHandler(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		def, verr := parseDefinition(req)
		if verr != "" {
			return mcp.NewToolResultError(verr), nil
		}

		result, err := deps.Optimizer.Optimize(ctx, def)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if deps.Runs != nil {
			if serr := deps.Runs.SaveOptimization(ctx, def.ID, result); serr != nil {
				deps.Logger.Error("archiving optimization failed", "error", serr.Error())
			}
		}
		return jsonResult(result)
	}
}

func suggestHandler(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		def, verr := parseDefinition(req)
		if verr != "" {
			return mcp.NewToolResultError(verr), nil
		}
		executionID, err := req.RequireString("execution_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if deps.Runs == nil {
			return mcp.NewToolResultError("run archive is not configured"), nil
		}

		run, err := deps.Runs.GetRun(ctx, executionID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		suggestions := deps.Evaluators.Suggest(ctx, def, run)
		return jsonResult(map[string]any{
			"execution_id": executionID,
			"suggestions":  suggestions,
		})
	}
}

func strategiesHandler(deps Deps) server.ToolHandlerFunc {
	return func(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(map[string]any{
			"mutations":  deps.Strategies.MutationIDs(),
			"evaluators": deps.Evaluators.IDs(),
		})
	}
}

func historyHandler(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Runs == nil {
			return mcp.NewToolResultError("run archive is not configured"), nil
		}
		workflowID := req.GetString("workflow_id", "")
		limit := req.GetInt("limit", 0)

		runs, err := deps.Runs.ListRuns(ctx, workflowID, limit)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(runs)
	}
}

func cancelHandler(deps Deps) server.ToolHandlerFunc {
	return func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		executionID, err := req.RequireString("execution_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := deps.Engine.Cancel(executionID); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("execution '%s' cancelled", executionID)), nil
	}
}

func scheduleHandler(deps Deps) server.ToolHandlerFunc {
	return func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Scheduler == nil {
			return mcp.NewToolResultError("scheduler is not configured"), nil
		}
		jobID, err := req.RequireString("job_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		spec, err := req.RequireString("spec")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		def, verr := parseDefinition(req)
		if verr != "" {
			return mcp.NewToolResultError(verr), nil
		}

		if err := deps.Scheduler.Add(jobID, spec, def); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("job '%s' scheduled", jobID)), nil
	}
}

// parseDefinition extracts and validates the "definition" argument. The
// second return is a non-empty error message on failure.
func parseDefinition(req mcp.CallToolRequest) (*schema.WorkflowDefinition, string) {
	raw, err := req.RequireString("definition")
	if err != nil {
		return nil, err.Error()
	}

	parsed, result := validation.ParseAndValidate([]byte(raw))
	if !result.Valid() {
		issues, _ := json.Marshal(result.Errors)
		return nil, fmt.Sprintf("invalid workflow definition: %s", issues)
	}
	return parsed, ""
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %s", err)), nil
	}
	return mcp.NewToolResultText(string(raw)), nil
}
