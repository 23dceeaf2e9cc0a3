// Package voipms is a small client for the voip.ms REST API. It covers the
// registration status lookup used by the watchdog and the SMS send call.
package voipms
