// Package auth provides user accounts, password hashing and bearer tokens.
//
// Passwords are stored as Argon2id PHC strings. Logins issue an HS256 JWT
// whose subject is the numeric user id and whose sid claim names the
// session; logout records the sid in revoked_sessions until the token
// would have expired anyway.
//
// Roles and site scoping live in the access package. This package only
// answers "who is calling"; the access resolver answers "what may they see".
package auth
