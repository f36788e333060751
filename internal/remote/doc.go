// Package remote provides the HTTP implementation of the manager's remote
// client: it probes an API endpoint on connect and fetches per-entity
// status documents, turning HTTP and transport failures into classified
// status errors.
package remote
