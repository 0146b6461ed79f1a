// Package workspace describes the on-disk analytics workspace a governed
// command runs against.
//
// A Workspace is built once per invocation and handed to every component
// explicitly. It carries the workspace root, the layout of canonical artifact
// paths, the workflow stage and execution mode read from the external state
// files, and the program name used when suggesting follow-up commands.
//
// The state files are owned by the domain tooling and are read-only here:
//
//	state/workflow_stage.json     {"current_stage": "...", "completed_stages": [...]}
//	state/execution_mode.json     {"mode": "guided" | "open"}
//	state/output_preferences.json free-form
//
// Missing or unreadable state never fails Load: the stage defaults to unset
// and the mode to guided. Only a malformed governance.yaml is reported as an
// error, since it is authored by the user and silently ignoring it would hide
// typos.
package workspace
