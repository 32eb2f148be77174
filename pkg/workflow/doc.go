/*
Package workflow runs one composition: persist, assemble, collect variable values,
and deliver the result according to the execution mode.

A Workflow accepts one run at a time. A run that arrives while another is in flight,
or while the cool-down after the previous run has not elapsed, returns a busy warning
without side effects. Every run ends with an Outcome; none leaves the workflow stuck.
*/
package workflow
