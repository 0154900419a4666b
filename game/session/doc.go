// Package session keeps track sessions in memory and, optionally, on disk.
//
// Manager implements service.SessionManager. Sessions use 4-character hex
// IDs generated from crypto/rand; caller-supplied IDs are matched without
// regard to case.
//
// With a SessionPersistence configured, sessions are saved on creation and
// whenever the service asks, and sessions missing from memory are loaded on
// first access. FilePersistence stores one JSON file per session holding the
// layout name, timestamps, tick counter, saved track and cars, so a restored
// session resumes exactly where it stopped. Schedulers are not persisted.
//
// Usage:
//
//	persistence, err := session.NewFilePersistence("data/sessions")
//	if err != nil {
//		log.Fatal(err)
//	}
//	manager := session.NewManagerWithPersistence(persistence, logger)
//	if err := manager.LoadPersistedSessions(); err != nil {
//		log.Fatal(err)
//	}
package session
