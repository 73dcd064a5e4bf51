// Package exchanges defines the [Marketplace] capability and the supported micro-task exchanges.
//
// Each marketplace describes its sign-up page declaratively with a [Form]; the registrar drives
// the browser through it. Task discovery and execution are methods on the marketplace. The
// shipped variants ([Advego], [Workzilla], [Kwork], [FL], [TextSale]) simulate discovery: a task
// is offered on every third cycle with a price drawn from the marketplace's range, and execution
// is a cancellable timed wait.
//
// A [Catalog] maps marketplace ids to implementations and replaces string dispatch at call sites.
package exchanges
