// Package approval links the review trail to record visibility. A
// decision is the durable artifact; publication status on the record is
// a projection of the latest decision and may lag or fail independently.
package approval
