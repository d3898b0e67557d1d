package database

import "time"

type MappingEntry struct {
	Identifier string `yaml:"id"`
	Site       string `yaml:"website"`
}

type UploadLogEntry struct {
	ID         int64
	Site       string
	Filename   string
	UploadedAt time.Time // persisted as unix microseconds, UTC
}
