/*
Package shred invokes the irrecoverable-overwrite primitive on a
preserved block file (spec §1, §4.6): a black-box shred(path) that
overwrites a file's data blocks a configured number of times and then
unlinks it.

Like pkg/oracle, the primitive is an external binary invoked with
exec.CommandContext in the teacher's ExecChecker style; this package
owns only the invocation, not the overwrite algorithm itself.
*/
package shred
