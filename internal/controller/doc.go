// Package controller implements the reconciliation and action-dispatch
// engine behind the dashboard.
//
// A single Loop goroutine owns the VM state Cache. Every refresh lists all
// domains from the Hypervisor, diffs the snapshot against the Cache and
// reports the differences to a Sink. Start and stop requests are handed to a
// Dispatcher whose elastic worker pool performs the blocking hypervisor
// calls; failed calls come back to the Loop on a failure channel so that all
// Cache reads and writes stay on one goroutine.
//
//	view --Action--> Loop --ListMachines--> Hypervisor
//	                  |  \--Dispatch--> Dispatcher --Start/Stop--> Hypervisor
//	                  |                     |
//	                  |<-----Failure--------/
//	                  \--events--> Sink
package controller
