// Package storage provides the optional publish audit log.
//
// Every publish attempt (success or failure) can be appended to a durable
// log so there is a record of what went out and when, independent of the
// processed/unprocessed directory split.
package storage
