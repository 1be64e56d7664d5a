// Package logging provides the structured logger shared by the BAES
// services.
//
// Records are JSON by default (text for local development) and always
// carry the service and version attributes. Configure via:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Passwords, JWTs and broker credentials must never be logged.
package logging
