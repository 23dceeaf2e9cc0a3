// Package checker runs one registration check over every configured
// account and decides, per account, whether an operator must be told.
//
// Per-account state lives in a marker.Store: a marker is set once a failure
// email has been attempted and cleared when the account is registered again,
// so an outage produces one failure email and one recovery email no matter
// how many runs observe it.
package checker
