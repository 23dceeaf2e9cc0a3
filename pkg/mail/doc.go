// Package mail sends the watchdog's notification emails over SMTP or
// SendGrid and renders their plain-text bodies from embedded templates.
// Senders never retry; every attempt yields a Result the caller logs.
package mail
