// Package harness runs governance scenarios: a throwaway workspace, one
// command invocation with a canned result, and expectations about what the
// governance pipeline decided.
//
// # Scenario Format
//
// Scenarios are YAML files with the following structure:
//
//	name: profiling_without_spec
//	description: "Profiling is blocked until a specification exists"
//	run_id: 0194b3a0-0000-7000-8000-000000000001
//	workspace:
//	  stage: init
//	  completed_stages: [init]
//	  mode: guided
//	  required_dirs: true
//	  files:
//	    data/sales.csv: "region,total\n"
//	invocation:
//	  command: profiling
//	  args: { sample: 100 }
//	  creates:
//	    outputs/profile.json: "{}"
//	  result:
//	    success: true
//	    profile_path: outputs/profile.json
//	expect:
//	  precondition: BLOCK
//	  missing_prerequisite: specification file
//	  recovery_generated: true
//
// Files under creates are written only when the command actually runs, so
// a blocked command produces nothing. Every expect field is optional; only
// the fields given are checked.
//
// # Golden Files
//
// RunWithGolden compares the rendered trust bundle against
// testdata/golden/<name>.golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness
