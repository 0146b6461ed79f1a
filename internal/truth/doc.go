// Package truth verifies that the artifacts a command claims to have
// produced actually exist.
//
// A Gate dispatches on the command name to a Validator; commands without
// one get the generic single-file check. Truth is existence on disk: an
// empty file is present but earns a warning. Enforce is the only place the
// governance layer overrides a command's own success claim.
package truth
