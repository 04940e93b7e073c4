// Package audit contains durable in-product audit writes for governance
// operations.
//
// Audit writes are fire-and-forget relative to the guarded operation: a
// failed write never rolls back or blocks a state transition, but it does
// increment a failure counter so operators can alert on ledger gaps.
package audit
